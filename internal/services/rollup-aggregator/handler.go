package rollup_aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Upwatch/internal/domain/check"
	"github.com/NordCoder/Upwatch/internal/domain/event"
	domrollup "github.com/NordCoder/Upwatch/internal/domain/rollup"
	"github.com/NordCoder/Upwatch/internal/obs"
	"github.com/NordCoder/Upwatch/internal/obs/retry"
	"github.com/NordCoder/Upwatch/internal/repository/postgres"
	"github.com/NordCoder/Upwatch/internal/rollup"
)

var mApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rollup_checks_total", Help: "monitor.checked events seen by the aggregator, by outcome",
}, []string{"outcome"})

type Ledger interface {
	MarkApplied(ctx context.Context, checkID int64) (bool, error)
	Upsert(ctx context.Context, delta domrollup.Daily) error
}

type Zones interface {
	Resolve(ctx context.Context, monitorID int64) (*time.Location, error)
}

// Handler folds monitor.checked events into daily rollups. Each check is
// applied at most once, however often the event is delivered. Store errors
// are retried under Persist; once it gives up the error is returned and the
// event must not be committed.
type Handler struct {
	Log        *zap.Logger
	Rollups    Ledger
	Zones      Zones
	Transactor postgres.Transactor
	Persist    retry.Policy
}

func (h *Handler) HandleEvent(ctx context.Context, env event.Envelope) error {
	c, ok := env.ToCheck()
	if !ok {
		return nil
	}
	log := obs.WithTrace(ctx, h.Log).With(zap.Int64("monitor_id", c.MonitorID), zap.Int64("check_id", c.ID))
	if c.ID <= 0 {
		mApplied.WithLabelValues("invalid").Inc()
		log.Warn("monitor.checked without check id")
		return nil
	}

	var (
		loc     *time.Location
		outcome string
	)
	err := retry.Do(ctx, func() error {
		var err error
		loc, outcome, err = h.apply(ctx, c)
		return err
	}, h.Persist)
	if err != nil {
		mApplied.WithLabelValues("error").Inc()
		return fmt.Errorf("apply check %d: %w", c.ID, err)
	}

	mApplied.WithLabelValues(outcome).Inc()
	log.Debug("rollup "+outcome, zap.String("tz", loc.String()))
	return nil
}

func (h *Handler) apply(ctx context.Context, c check.Check) (*time.Location, string, error) {
	loc, err := h.Zones.Resolve(ctx, c.MonitorID)
	if err != nil {
		return nil, "", fmt.Errorf("resolve timezone: %w", err)
	}

	outcome := "applied"
	err = h.Transactor.WithTx(ctx, func(ctx context.Context) error {
		fresh, err := h.Rollups.MarkApplied(ctx, c.ID)
		if err != nil {
			return err
		}
		if !fresh {
			outcome = "duplicate"
			return nil
		}
		return h.Rollups.Upsert(ctx, rollup.Delta(c, loc))
	})
	switch {
	case errors.Is(err, postgres.ErrNotFound):
		// the monitor was deleted together with its checks
		return loc, "gone", nil
	case err != nil:
		return nil, "", err
	}
	return loc, outcome, nil
}
