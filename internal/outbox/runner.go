package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Upwatch/internal/domain/outbox"
	"github.com/NordCoder/Upwatch/internal/obs"
)

var (
	mRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_rows_total", Help: "Outbox rows handled, by kind and outcome.",
	}, []string{"kind", "outcome"})
	mPickErrs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_store_errors_total", Help: "Failed pick or mark queries.",
	})
	mTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "outbox_tick_duration_seconds", Help: "Time to pick and publish one batch.",
		Buckets: prometheus.DefBuckets,
	})
	mBatchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_last_batch_size", Help: "Rows in the last picked batch.",
	})
)

var tracer = otel.Tracer("outbox.runner")

// Runner polls the outbox table and publishes what it finds. Rows that fail
// are left IN_PROGRESS and come back once inProgressTTL has passed, so
// delivery is at least once.
type Runner struct {
	log      *zap.Logger
	repo     outbox.Repository
	dispatch outbox.GlobalHandler

	workers       int
	batchSize     int
	every         time.Duration
	inProgressTTL time.Duration

	wg sync.WaitGroup
}

func NewOutboxRunner(
	log *zap.Logger,
	repo outbox.Repository,
	dispatch outbox.GlobalHandler,
	workers int,
	batchSize int,
	every time.Duration,
	inProgressTTL time.Duration,
) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		log:           log.With(zap.String("component", "outbox")),
		repo:          repo,
		dispatch:      dispatch,
		workers:       max(workers, 1),
		batchSize:     cmpOr(batchSize, 100),
		every:         cmpOr(every, time.Second),
		inProgressTTL: inProgressTTL,
	}
}

func cmpOr[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// Start launches the workers. They stop when ctx is done; Wait blocks until
// they have.
func (r *Runner) Start(ctx context.Context) {
	r.log.Info("outbox started",
		zap.Int("workers", r.workers),
		zap.Int("batch", r.batchSize),
		zap.Duration("every", r.every))
	for range r.workers {
		r.wg.Add(1)
		go r.loop(ctx)
	}
}

func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	t := time.NewTicker(r.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Tick(ctx)
		}
	}
}

// Tick picks one batch, publishes it row by row in Seq order and marks the
// published rows. It stops at the first row that fails; that row and the
// rest of the batch come back together once inProgressTTL has passed.
func (r *Runner) Tick(ctx context.Context) {
	start := time.Now()
	defer func() { mTickDur.Observe(time.Since(start).Seconds()) }()

	ctx, span := tracer.Start(ctx, "outbox.tick", trace.WithAttributes(
		attribute.Int("outbox.batch_limit", r.batchSize),
	))
	defer span.End()

	rows, err := r.repo.PickBatch(ctx, r.batchSize, r.inProgressTTL)
	if err != nil {
		span.RecordError(err)
		mPickErrs.Inc()
		obs.WithTrace(ctx, r.log).Error("pick batch", zap.Error(err))
		return
	}
	mBatchSize.Set(float64(len(rows)))
	if len(rows) == 0 {
		return
	}

	done := make([]string, 0, len(rows))
	for _, m := range rows {
		if !r.publish(ctx, m) {
			break
		}
		done = append(done, m.IdempotencyKey)
	}
	if len(done) == 0 {
		return
	}
	if err := r.repo.MarkSuccess(ctx, done); err != nil {
		// the rows are published again after the TTL; consumers are idempotent
		span.RecordError(err)
		mPickErrs.Inc()
		obs.WithTrace(ctx, r.log).Error("mark success", zap.Int("rows", len(done)), zap.Error(err))
	}
}

// publish runs the handler for one row under the trace that enqueued it.
func (r *Runner) publish(ctx context.Context, m outbox.Message) bool {
	parent := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		"traceparent": m.Traceparent,
		"tracestate":  m.Tracestate,
		"baggage":     m.Baggage,
	})
	ctx, span := tracer.Start(parent, "outbox.dispatch", trace.WithAttributes(
		attribute.String("outbox.key", m.IdempotencyKey),
		attribute.String("outbox.kind", m.Kind.String()),
	))
	defer span.End()

	kind := m.Kind.String()
	log := obs.WithTrace(ctx, r.log).With(zap.String("key", m.IdempotencyKey), zap.String("kind", kind))

	h, err := r.dispatch(m.Kind)
	if err != nil {
		span.RecordError(err)
		mRows.WithLabelValues(kind, "unroutable").Inc()
		log.Error("no handler", zap.Error(err))
		return false
	}
	if err := h(ctx, m.Data); err != nil {
		span.RecordError(err)
		mRows.WithLabelValues(kind, "failed").Inc()
		log.Warn("publish failed, will retry after ttl", zap.Error(err))
		return false
	}
	mRows.WithLabelValues(kind, "published").Inc()
	return true
}
