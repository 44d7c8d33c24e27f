package main

import (
	"context"
	"net"
	"time"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	config "github.com/NordCoder/Upwatch/internal/config/api"
	"github.com/NordCoder/Upwatch/internal/obs"
	pg "github.com/NordCoder/Upwatch/internal/repository/postgres"
)

// buildGRPCServer serves the health service the HTTP gateway probes for
// /healthz. Its status follows database reachability.
func buildGRPCServer(cfg *config.Config) (*grpc.Server, *health.Server, net.Listener, error) {
	grpcMetrics := grpcprometheus.NewServerMetrics()
	opts := obs.GRPCServerOpts()
	opts = append(opts,
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	grpcServer := grpc.NewServer(opts...)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)

	grpcMetrics.InitializeMetrics(grpcServer)
	prometheus.MustRegister(grpcMetrics)

	ln, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	return grpcServer, hs, ln, nil
}

func serveGRPC(s *grpc.Server, ln net.Listener, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("grpc listening", zap.String("addr", cfg.Server.GRPCAddr))
	return s.Serve(ln)
}

// watchDB flips the health status with every database ping until ctx is done.
func watchDB(ctx context.Context, db *pg.DB, hs *health.Server, every time.Duration, logger *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		err := db.Ping(hctx)
		cancel()

		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if st != last {
			logger.Info("health status", zap.String("status", st.String()), zap.Error(err))
			last = st
		}
		hs.SetServingStatus("", st)

		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
		}
	}
}
