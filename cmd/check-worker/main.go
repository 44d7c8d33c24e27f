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

	config "github.com/NordCoder/Upwatch/internal/config/check-worker"
	"github.com/NordCoder/Upwatch/internal/domain"
	"github.com/NordCoder/Upwatch/internal/obs"
	"github.com/NordCoder/Upwatch/internal/obs/retry"
	"github.com/NordCoder/Upwatch/internal/outbox"
	"github.com/NordCoder/Upwatch/internal/probe"
	"github.com/NordCoder/Upwatch/internal/repository/kafka"
	pg "github.com/NordCoder/Upwatch/internal/repository/postgres"
	checkworker "github.com/NordCoder/Upwatch/internal/services/check-worker"
	workerrepo "github.com/NordCoder/Upwatch/internal/services/check-worker/repo"
)

func wire(cfg *config.Config, db *pg.DB, events *kafka.DomainEventsKafka, sub checkworker.Subscriber, l *zap.Logger) (*outbox.Runner, *checkworker.Controller) {
	outboxRepo := pg.NewOutboxRepo(db)
	transactor := pg.NewTransactor(db, l)

	dispatch := outbox.MakeGlobalOutboxHandler(events, retry.DefaultKafkaPolicy(l))
	outboxRunner := outbox.NewOutboxRunner(
		l,
		outboxRepo,
		dispatch,
		cfg.Outbox.Workers,
		cfg.Outbox.BatchSize,
		cfg.Outbox.WaitTime,
		cfg.Outbox.InProgressTTL,
	)

	clock := domain.SystemClock{}
	httpc := probe.NewHTTPClient(probe.ClientConfig{
		DialTimeout:     cfg.Probe.DialTimeout,
		FollowRedirects: cfg.Probe.FollowRedirects,
		MaxRedirects:    cfg.Probe.MaxRedirects,
		VerifyTLS:       cfg.Probe.VerifyTLS,
	})

	monitors := pg.NewMonitorRepo(db)
	uc := &checkworker.Handler{
		Log:        l,
		Probe:      probe.NewExecutor(httpc, cfg.Probe.UserAgent, clock),
		Monitors:   monitors,
		Checks:     pg.NewCheckRepo(db),
		Incidents:  pg.NewIncidentRepo(db),
		Events:     workerrepo.Events{R: outboxRepo},
		Transactor: transactor,
		Clock:      clock,
		Persist: retry.PersistPolicy(l, cfg.Persist.Attempts, cfg.Persist.Base, cfg.Persist.Max,
			pg.ErrLeaseLost),
		LeaseTTL: cfg.Lease.TTL,
	}

	return outboxRunner, &checkworker.Controller{Log: l, Sub: sub, UC: uc}
}

func main() {
	// init
	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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
	l.Info("starting check-worker",
		zap.Any("kafka_in", cfg.In),
		zap.Any("kafka_out", cfg.Out),
		zap.String("metrics_addr", cfg.Metrics.Addr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(root, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.New(root, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Metrics.Addr, db.Ping, l)

	// kafka
	group := kafka.BootstrapGroup(root, cfg.In.AsConsumerConfig(), cfg.In.Partitions, cfg.In.Concurrency, l)
	defer func() { _ = group.Close() }()

	_ = kafka.EnsureTopic(root, cfg.Out.Brokers, kafka.TopicSpec{Name: cfg.Out.Topic}, l)
	prod := kafka.NewProducer(cfg.Out.Brokers, cfg.Out.Topic).WithLogger(l)
	defer func() { _ = prod.Close() }()

	// wiring
	outboxRunner, ctrl := wire(cfg, db, kafka.NewDomainEventsKafka(prod), group, l)

	// start
	outboxRunner.Start(root)
	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Run(root) }()

	// loop
	select {
	case <-root.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("controller error", zap.Error(err))
		}
		stop()
	}
	outboxRunner.Wait()

	// graceful metrics server shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
