package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Upwatch/internal/domain"
	"github.com/NordCoder/Upwatch/internal/domain/monitor"
)

// Leases is the part of monitor.Repo the dispatcher needs.
type Leases interface {
	ClaimDue(ctx context.Context, limit int, leaseTTL time.Duration) ([]monitor.Claim, error)
	ClaimByID(ctx context.Context, id int64, leaseTTL time.Duration) (*monitor.Claim, error)
	Release(ctx context.Context, id int64, leaseToken string) error
}

type Requests interface {
	PublishCheckRequested(ctx context.Context, snap monitor.Snapshot) error
}

const releaseTimeout = 5 * time.Second

type Usecase struct {
	Leases   Leases
	Requests Requests
	LeaseTTL time.Duration
	Clock    domain.Clock
	Log      *zap.Logger
}

func NewUC(leases Leases, requests Requests, leaseTTL time.Duration, clock domain.Clock, log *zap.Logger) *Usecase {
	return &Usecase{Leases: leases, Requests: requests, LeaseTTL: leaseTTL, Clock: clock, Log: log}
}

// Tick claims every due idle monitor and publishes a check request for each.
// It returns how many were claimed, how many were published and how many
// publishes failed.
func (u *Usecase) Tick(ctx context.Context, limit int) (int, int, int, error) {
	if limit <= 0 {
		limit = 100
	}

	tr := otel.Tracer("scheduler.uc")
	ctxTick, span := tr.Start(ctx, "scheduler.tick",
		trace.WithAttributes(attribute.Int("batch.limit", limit)),
	)
	defer span.End()

	claims, err := u.Leases.ClaimDue(ctxTick, limit, u.LeaseTTL)
	if err != nil {
		span.RecordError(err)
		return 0, 0, 1, fmt.Errorf("claim due: %w", err)
	}
	span.SetAttributes(attribute.Int("batch.claimed", len(claims)))
	if len(claims) == 0 {
		return 0, 0, 0, nil
	}

	sent, errs := 0, 0
	for _, c := range claims {
		if err := u.publish(ctxTick, c); err != nil {
			errs++
			continue
		}
		sent++
	}

	span.SetAttributes(
		attribute.Int("batch.sent", sent),
		attribute.Int("batch.errors", errs),
	)
	return len(claims), sent, errs, nil
}

// Dispatch claims one monitor out of band and publishes its check request.
// It reports false when the monitor is inactive or already in flight.
func (u *Usecase) Dispatch(ctx context.Context, monitorID int64) (bool, error) {
	c, err := u.Leases.ClaimByID(ctx, monitorID, u.LeaseTTL)
	if err != nil {
		return false, fmt.Errorf("claim monitor %d: %w", monitorID, err)
	}
	if c == nil {
		return false, nil
	}
	if err := u.publish(ctx, *c); err != nil {
		return false, err
	}
	return true, nil
}

func (u *Usecase) publish(ctx context.Context, c monitor.Claim) error {
	ctx, sp := otel.Tracer("scheduler.uc").Start(ctx, "scheduler.publish",
		trace.WithAttributes(
			attribute.Int64("monitor.id", c.Monitor.ID),
			attribute.String("monitor.url", c.Monitor.URL),
		),
	)
	defer sp.End()

	pubErr := u.Requests.PublishCheckRequested(ctx, c.Snapshot(u.Clock.Now()))
	if pubErr == nil {
		sp.SetAttributes(attribute.String("publish.status", "ok"))
		return nil
	}
	sp.RecordError(pubErr)
	sp.SetAttributes(attribute.String("publish.status", "error"))

	// next_check_at was never advanced, so the following tick retries
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := u.Leases.Release(rctx, c.Monitor.ID, c.LeaseToken); err != nil {
		u.Log.Warn("release after failed publish",
			zap.Int64("monitor_id", c.Monitor.ID), zap.Error(err))
	}
	return fmt.Errorf("publish check request for monitor %d: %w", c.Monitor.ID, pubErr)
}
