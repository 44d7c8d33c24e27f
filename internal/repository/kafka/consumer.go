package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Handler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader *kafka.Reader
	log    *zap.Logger
	cfg    *ConsumerConfig
}

type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topic         string
	FromBeginning bool
	// HaltOnError stops Consume on the first handler error and leaves that
	// message uncommitted, so it is redelivered after a restart or rebalance.
	// Otherwise the error is logged and the message committed.
	HaltOnError bool
	Logger      *zap.Logger
}

func NewConsumer(cfg *ConsumerConfig) *Consumer {
	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}

	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.GroupID,
		Topic:                 cfg.Topic,
		StartOffset:           start,
		WatchPartitionChanges: true,

		MinBytes:          1,
		MaxBytes:          10e6,
		MaxWait:           500 * time.Millisecond,
		SessionTimeout:    10 * time.Second,
		RebalanceTimeout:  15 * time.Second,
		HeartbeatInterval: 3 * time.Second,
	})

	log := cfg.Logger.With(
		zap.String("component", "kafka.consumer"),
		zap.String("topic", cfg.Topic),
		zap.String("group", cfg.GroupID),
	)

	return &Consumer{reader: r, log: log, cfg: cfg}
}

func (c *Consumer) WithLogger(l *zap.Logger) *Consumer {
	if l == nil {
		return c
	}
	cp := *c
	cp.log = l.With(
		zap.String("component", "kafka.consumer"),
		zap.String("topic", c.cfg.Topic),
		zap.String("group", c.cfg.GroupID),
	)
	return &cp
}

// Consume fetches messages until ctx is done. A message is committed after
// its handler returns; see ConsumerConfig.HaltOnError for handler errors.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	log := c.log
	log.Info("consumer started")

	tr := otel.Tracer("kafka.consumer")
	prop := otel.GetTextMapPropagator()

	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			log.Info("consumer stopped (ctx canceled)")
			return ctx.Err()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopped (ctx canceled)")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				log.Debug("fetch EOF; retry", zap.Duration("backoff", backoff))
			} else {
				log.Warn("fetch failed; retry", zap.Error(err), zap.Duration("backoff", backoff))
			}
			time.Sleep(backoff)
			if backoff < maxBackoff {
				backoff *= 2
			}
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = 200 * time.Millisecond

		msgCtx := prop.Extract(ctx, mapCarrierFromKafka(msg.Headers))
		msgCtx, span := tr.Start(msgCtx, "kafka.consume "+c.cfg.Topic, trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				semconv.MessagingSystemKafka,
				semconv.MessagingDestinationName(c.cfg.Topic),
				semconv.MessagingOperationReceive,
			),
		)
		if err := h(msgCtx, msg.Key, msg.Value); err != nil {
			span.RecordError(err)
			consumedTotal.WithLabelValues(c.cfg.Topic, "error").Inc()
			log.Error("handler error", zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
			if c.cfg.HaltOnError {
				span.End()
				return fmt.Errorf("partition %d offset %d: %w", msg.Partition, msg.Offset, err)
			}
		} else {
			consumedTotal.WithLabelValues(c.cfg.Topic, "ok").Inc()
		}
		span.End()

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				log.Info("commit interrupted by context cancel")
				return ctx.Err()
			}
			log.Warn("commit failed; will retry later", zap.Error(err))
		}
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }

// Group is a set of consumers sharing one consumer group, each reading its
// own share of partitions.
type Group []*Consumer

func NewGroup(cfg *ConsumerConfig, size int) Group {
	if size < 1 {
		size = 1
	}
	g := make(Group, 0, size)
	for i := 0; i < size; i++ {
		c := *cfg
		g = append(g, NewConsumer(&c))
	}
	return g
}

func (g Group) Consume(ctx context.Context, h Handler) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, c := range g {
		eg.Go(func() error { return c.Consume(ctx, h) })
	}
	return eg.Wait()
}

func (g Group) Close() error {
	var errs []error
	for _, c := range g {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
