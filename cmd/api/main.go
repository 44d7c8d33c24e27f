package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Upwatch/internal/config/api"
	"github.com/NordCoder/Upwatch/internal/domain"
	"github.com/NordCoder/Upwatch/internal/obs"
	"github.com/NordCoder/Upwatch/internal/repository/kafka"
	pg "github.com/NordCoder/Upwatch/internal/repository/postgres"
	"github.com/NordCoder/Upwatch/internal/services/api"
	"github.com/NordCoder/Upwatch/internal/services/scheduler"
)

func wire(cfg *config.Config, db *pg.DB, prod *kafka.Producer, l *zap.Logger) (*api.Server, error) {
	loc, err := cfg.Rollup.Location()
	if err != nil {
		return nil, err
	}
	clock := domain.SystemClock{}
	monitors := pg.NewMonitorRepo(db)

	// creates and resumes are dispatched immediately instead of waiting for
	// the next scheduler tick
	dispatcher := scheduler.NewUC(monitors, kafka.NewCheckRequestsKafka(prod), cfg.Dispatch.LeaseTTL, clock, l)
	life := scheduler.NewLifecycle(monitors, pg.NewTransactor(db, l), dispatcher, clock, l)

	uc := &api.Usecase{
		Monitors:  monitors,
		Checks:    pg.NewCheckRepo(db),
		Incidents: pg.NewIncidentRepo(db),
		Rollups:   pg.NewRollupRepo(db),
		Zones:     pg.NewZoneRepo(db, loc, l),
		Clock:     clock,
	}
	return api.NewServer(l, uc, life), nil
}

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("UPWATCH_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	logger, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting api", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	otelCloser, err := obs.SetupOTel(rootCtx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	db, err := pg.New(rootCtx, cfg.DB)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	prod := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(logger)
	defer func() { _ = prod.Close() }()

	srv, err := wire(cfg, db, prod, logger)
	if err != nil {
		logger.Fatal("wire", zap.Error(err))
	}

	grpcServer, hs, grpcLn, err := buildGRPCServer(cfg)
	if err != nil {
		logger.Fatal("build grpc", zap.Error(err))
	}
	go watchDB(rootCtx, db, hs, 5*time.Second, logger)

	grpcErrCh := make(chan error, 1)
	go func() { grpcErrCh <- serveGRPC(grpcServer, grpcLn, cfg, logger) }()

	httpSrv, conn, err := buildHTTPServer(cfg, srv)
	if err != nil {
		logger.Fatal("build http", zap.Error(err))
	}
	defer func() { _ = conn.Close() }()

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, cfg, logger) }()

	var runErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case runErr = <-grpcErrCh:
		if runErr != nil {
			logger.Error("grpc serve", zap.Error(runErr))
		}
	case runErr = <-httpErrCh:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(runErr))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	_ = httpSrv.Shutdown(shCtx)
	grpcServer.GracefulStop()
	logger.Info("bye")
}
