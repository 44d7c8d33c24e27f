package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Upwatch/internal/config/scheduler"
	"github.com/NordCoder/Upwatch/internal/domain"
	"github.com/NordCoder/Upwatch/internal/obs"
	kafkaRepo "github.com/NordCoder/Upwatch/internal/repository/kafka"
	pg "github.com/NordCoder/Upwatch/internal/repository/postgres"
	"github.com/NordCoder/Upwatch/internal/services/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load(os.Getenv("UPWATCH_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	l.Info("starting scheduler",
		zap.Any("kafka_out", cfg.Kafka),
		zap.Duration("tick", cfg.Sched.Tick),
		zap.Duration("lease_ttl", cfg.Sched.LeaseTTL),
		zap.String("metrics_addr", cfg.Metrics.Addr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// kafka
	if err := kafkaRepo.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkaRepo.TopicSpec{Name: cfg.Kafka.Topic}, l); err != nil {
		// the writer retries until the topic shows up
		l.Warn("ensure topic", zap.String("topic", cfg.Kafka.Topic), zap.Error(err))
	}
	kafkaProd := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(l)
	defer func() { _ = kafkaProd.Close() }()

	// run metrics server
	ms := obs.BootstrapMetricsServer(cfg.Metrics.Addr, db.Ping, l)

	// wiring
	uc := scheduler.NewUC(
		pg.NewMonitorRepo(db),
		kafkaRepo.NewCheckRequestsKafka(kafkaProd),
		cfg.Sched.LeaseTTL,
		domain.SystemClock{},
		l,
	)
	runner := scheduler.New(l, uc, &cfg.Sched)

	// run
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	l.Info("scheduler started")

	// loop
	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("scheduler runner", zap.Error(err))
		}
	}

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := ms.Shutdown(shCtx); err != nil {
		l.Warn("metrics shutdown", zap.Error(err))
	}
	l.Info("scheduler stopped")
}
