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

	config "github.com/NordCoder/Upwatch/internal/config/rollup-aggregator"
	"github.com/NordCoder/Upwatch/internal/obs"
	"github.com/NordCoder/Upwatch/internal/obs/retry"
	"github.com/NordCoder/Upwatch/internal/repository/kafka"
	pg "github.com/NordCoder/Upwatch/internal/repository/postgres"
	aggregator "github.com/NordCoder/Upwatch/internal/services/rollup-aggregator"
)

func wiring(cfg *config.Config, db *pg.DB, sub aggregator.Subscriber, l *zap.Logger) (*aggregator.Controller, error) {
	loc, err := cfg.Rollup.Location()
	if err != nil {
		return nil, err
	}
	persist := retry.PersistPolicy(l, cfg.Persist.Attempts, cfg.Persist.Base, cfg.Persist.Max)
	persist.Name = "rollup_persist"
	uc := &aggregator.Handler{
		Log:        l,
		Rollups:    pg.NewRollupRepo(db),
		Zones:      pg.NewZoneRepo(db, loc, l),
		Transactor: pg.NewTransactor(db, l),
		Persist:    persist,
	}
	return &aggregator.Controller{Log: l, Sub: sub, UC: uc}, nil
}

func main() {
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	// init
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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
	l.Info("starting rollup-aggregator",
		zap.Any("kafka_in", cfg.In),
		zap.String("default_timezone", cfg.Rollup.DefaultTimezone),
		zap.String("metrics_addr", cfg.Metrics.Addr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(rootCtx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Warn("otel init", zap.Error(err))
	}
	defer func() {
		if otelCloser != nil {
			_ = otelCloser.Shutdown(context.Background())
		}
	}()

	// db
	db, err := pg.New(rootCtx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Metrics.Addr, db.Ping, l)

	// kafka
	// an event that cannot be applied stops the group uncommitted
	in := cfg.In.AsConsumerConfig()
	in.HaltOnError = true
	group := kafka.BootstrapGroup(rootCtx, in, cfg.In.Partitions, cfg.In.Concurrency, l)
	defer func() { _ = group.Close() }()

	// start
	ctrl, err := wiring(cfg, db, group, l)
	if err != nil {
		l.Fatal("wiring", zap.Error(err))
	}
	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Run(rootCtx) }()

	// main loop
	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("controller error", zap.Error(err))
			exitCode = 1
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye", zap.Int("exit_code", exitCode))
}
