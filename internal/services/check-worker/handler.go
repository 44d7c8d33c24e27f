package check_worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Upwatch/internal/detector"
	"github.com/NordCoder/Upwatch/internal/domain"
	"github.com/NordCoder/Upwatch/internal/domain/check"
	"github.com/NordCoder/Upwatch/internal/domain/event"
	"github.com/NordCoder/Upwatch/internal/domain/incident"
	"github.com/NordCoder/Upwatch/internal/domain/monitor"
	"github.com/NordCoder/Upwatch/internal/obs"
	"github.com/NordCoder/Upwatch/internal/obs/retry"
	"github.com/NordCoder/Upwatch/internal/repository/postgres"
)

var (
	mOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkworker_requests_total", Help: "Check requests handled, by outcome",
	}, []string{"outcome"})
	mEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkworker_events_total", Help: "Detector events written to the outbox",
	}, []string{"kind"})
	mPersistDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "checkworker_persist_duration_seconds", Help: "Completion transaction time including retries",
		Buckets: prometheus.DefBuckets,
	})
)

type Prober interface {
	Execute(ctx context.Context, s monitor.Snapshot) check.Check
}

type Monitors interface {
	RenewLease(ctx context.Context, id int64, leaseToken string, leaseTTL time.Duration) error
	LockLease(ctx context.Context, id int64, leaseToken string) (*monitor.Monitor, error)
	Complete(ctx context.Context, id int64, c monitor.Completion) error
	Release(ctx context.Context, id int64, leaseToken string) error
}

type Checks interface {
	Insert(ctx context.Context, c *check.Check) error
}

type Incidents interface {
	GetOpen(ctx context.Context, monitorID int64) (*incident.Incident, error)
	Open(ctx context.Context, i *incident.Incident) error
	Close(ctx context.Context, id int64, endedAt time.Time) error
}

type Events interface {
	Enqueue(ctx context.Context, evs []event.Event, at time.Time) error
}

const releaseTimeout = 5 * time.Second

// Handler executes one dispatched check and completes it. Completion is a
// single transaction guarded by the lease token: it stores the check, runs
// the incident detector, writes events to the outbox and reschedules.
type Handler struct {
	Log        *zap.Logger
	Probe      Prober
	Monitors   Monitors
	Checks     Checks
	Incidents  Incidents
	Events     Events
	Transactor postgres.Transactor
	Clock      domain.Clock
	Persist    retry.Policy
	// LeaseTTL is added on top of the monitor timeout when the lease is
	// renewed right before probing.
	LeaseTTL time.Duration
}

func (h *Handler) HandleCheck(ctx context.Context, snap monitor.Snapshot) error {
	log := obs.WithTrace(ctx, h.Log).With(zap.Int64("monitor_id", snap.MonitorID))
	if err := snap.Validate(); err != nil {
		mOutcomes.WithLabelValues("invalid").Inc()
		log.Warn("invalid check request", zap.Error(err))
		return nil
	}

	// the request may have sat in the topic past its lease; probing then could
	// overlap a newer dispatch of the same monitor
	if err := h.Monitors.RenewLease(ctx, snap.MonitorID, snap.LeaseToken, h.LeaseTTL); err != nil {
		if errors.Is(err, postgres.ErrLeaseLost) {
			mOutcomes.WithLabelValues("stale").Inc()
			log.Info("lease expired before probe, request dropped")
			return nil
		}
		mOutcomes.WithLabelValues("failed").Inc()
		h.release(ctx, log, snap)
		return fmt.Errorf("renew lease for monitor %d: %w", snap.MonitorID, err)
	}

	c := h.Probe.Execute(ctx, snap)
	if ctx.Err() != nil {
		// the probe was cut short by shutdown, not by the target
		mOutcomes.WithLabelValues("canceled").Inc()
		h.release(ctx, log, snap)
		return ctx.Err()
	}

	start := time.Now()
	err := retry.Do(ctx, func() error { return h.complete(ctx, snap, &c) }, h.Persist)
	mPersistDur.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		mOutcomes.WithLabelValues("completed").Inc()
		log.Debug("check completed",
			zap.Int64("check_id", c.ID),
			zap.String("status", string(c.Status)))
		return nil
	case errors.Is(err, postgres.ErrLeaseLost):
		// deleted, or the lease expired and another worker took over
		mOutcomes.WithLabelValues("lease_lost").Inc()
		log.Info("lease lost, check dropped")
		return nil
	default:
		mOutcomes.WithLabelValues("failed").Inc()
		h.release(ctx, log, snap)
		return fmt.Errorf("complete check for monitor %d: %w", snap.MonitorID, err)
	}
}

func (h *Handler) complete(ctx context.Context, snap monitor.Snapshot, c *check.Check) error {
	ctx, span := otel.Tracer("checkworker.uc").Start(ctx, "checkworker.complete",
		trace.WithAttributes(
			attribute.Int64("monitor.id", snap.MonitorID),
			attribute.String("check.status", string(c.Status)),
		),
	)
	defer span.End()

	var evs []event.Event
	err := h.Transactor.WithTx(ctx, func(ctx context.Context) error {
		m, err := h.Monitors.LockLease(ctx, snap.MonitorID, snap.LeaseToken)
		if err != nil {
			return err
		}
		open, err := h.Incidents.GetOpen(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("get open incident: %w", err)
		}

		c.ID = 0
		c.MonitorID = m.ID
		if err := h.Checks.Insert(ctx, c); err != nil {
			return fmt.Errorf("insert check: %w", err)
		}

		state := detector.State{
			FailingStreak:    m.ConsecutiveFailures,
			SucceedingStreak: m.ConsecutiveSuccesses,
			OpenIncident:     open,
		}
		var next detector.State
		next, evs = detector.Evaluate(state, c, detector.Thresholds{
			Failure:  m.FailureThreshold,
			Recovery: m.RecoveryThreshold,
		})

		for _, ev := range evs {
			switch ev.Kind {
			case event.KindIncidentOpened:
				if err := h.Incidents.Open(ctx, ev.Incident); err != nil {
					return fmt.Errorf("open incident: %w", err)
				}
			case event.KindIncidentResolved:
				if err := h.Incidents.Close(ctx, ev.Incident.ID, *ev.Incident.EndedAt); err != nil {
					return fmt.Errorf("close incident %d: %w", ev.Incident.ID, err)
				}
			}
		}

		now := h.Clock.Now()
		if err := h.Events.Enqueue(ctx, evs, now); err != nil {
			return err
		}
		return h.Monitors.Complete(ctx, m.ID, monitor.Completion{
			NextCheckAt:          monitor.NextAfterCheck(*m, snap.ConfigVersion, c.CheckedAt, now),
			ConsecutiveFailures:  next.FailingStreak,
			ConsecutiveSuccesses: next.SucceedingStreak,
		})
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	for _, ev := range evs {
		mEvents.WithLabelValues(string(ev.Kind)).Inc()
	}
	return nil
}

// release hands the monitor back to the scheduler without advancing
// next_check_at, so it is dispatched again on the next tick.
func (h *Handler) release(ctx context.Context, log *zap.Logger, snap monitor.Snapshot) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := h.Monitors.Release(rctx, snap.MonitorID, snap.LeaseToken); err != nil {
		log.Warn("release lease", zap.Error(err))
	}
}
