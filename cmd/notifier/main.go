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

	config "github.com/NordCoder/Upwatch/internal/config/notifier"
	"github.com/NordCoder/Upwatch/internal/domain"
	"github.com/NordCoder/Upwatch/internal/domain/notification"
	"github.com/NordCoder/Upwatch/internal/obs"
	"github.com/NordCoder/Upwatch/internal/repository/kafka"
	pg "github.com/NordCoder/Upwatch/internal/repository/postgres"
	"github.com/NordCoder/Upwatch/internal/services/notifier"
)

func wiring(cfg *config.Config, db *pg.DB, sub notifier.Subscriber, l *zap.Logger) *notifier.Controller {
	uc := &notifier.Handler{
		Log:   l,
		Store: pg.NewNotificationRepo(db),
		Senders: map[notification.ChannelKind]notification.Sender{
			notification.ChannelEmail:   notifier.NewMailer(cfg.SMTP).WithLogger(l),
			notification.ChannelDiscord: notifier.NewDiscord(cfg.Discord).WithLogger(l),
		},
		Clock: domain.SystemClock{},
	}
	return &notifier.Controller{Log: l, Sub: sub, UC: uc}
}

func main() {
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
	l.Info("starting notifier",
		zap.Any("kafka_in", cfg.In),
		zap.String("metrics_addr", cfg.Metrics.Addr),
		zap.String("smtp_addr", cfg.SMTP.Addr),
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
	l.Info("db connected")

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Metrics.Addr, db.Ping, l)

	// kafka
	group := kafka.BootstrapGroup(rootCtx, cfg.In.AsConsumerConfig(), cfg.In.Partitions, cfg.In.Concurrency, l)
	defer func() { _ = group.Close() }()
	l.Info("kafka consumer initialized",
		zap.Strings("brokers", cfg.In.Brokers),
		zap.String("group_id", cfg.In.GroupID),
		zap.String("topic", cfg.In.Topic),
	)

	// start
	ctrl := wiring(cfg, db, group, l)
	errCh := make(chan error, 1)
	go func() {
		l.Info("controller starting")
		errCh <- ctrl.Run(rootCtx)
	}()

	// main loop
	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("controller error", zap.Error(err))
		}
	}

	// graceful metrics server shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
