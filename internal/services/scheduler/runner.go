package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	config "github.com/NordCoder/Upwatch/internal/config/scheduler"
)

var (
	mClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_monitors_claimed_total", Help: "Due monitors leased for a check",
	})
	mSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_messages_sent_total", Help: "Check requests published to Kafka",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_errors_total", Help: "Errors in scheduler loop",
	})
	mLoopDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "scheduler_loop_duration_seconds", Help: "Scheduler tick duration",
		Buckets: prometheus.DefBuckets,
	})
)

type Ticker interface {
	Tick(ctx context.Context, limit int) (int, int, int, error)
}

// Runner fires the tick on a fixed cadence. A run that comes due while the
// previous tick is still going is skipped.
type Runner struct {
	Log *zap.Logger
	UC  Ticker
	Cfg *config.SchedCfg
}

func New(log *zap.Logger, uc Ticker, cfg *config.SchedCfg) *Runner {
	return &Runner{Log: log, UC: uc, Cfg: cfg}
}

func (r *Runner) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	claimed, sent, errs, err := r.UC.Tick(ctx, r.Cfg.BatchLimit)
	if err != nil {
		mErr.Inc()
		r.Log.Warn("tick error", zap.Error(err))
	}
	if claimed > 0 {
		mClaimed.Add(float64(claimed))
		mSent.Add(float64(sent))
		if errs > 0 {
			mErr.Add(float64(errs))
		}
		r.Log.Debug("scheduled batch", zap.Int("claimed", claimed), zap.Int("sent", sent), zap.Int("errors", errs))
	}
	mLoopDur.Observe(time.Since(start).Seconds())
}

// Run blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("new scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(r.Cfg.Tick),
		gocron.NewTask(func() { r.tick(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule tick: %w", err)
	}

	s.Start()
	<-ctx.Done()

	if err := s.Shutdown(); err != nil {
		r.Log.Warn("scheduler shutdown", zap.Error(err))
	}
	return ctx.Err()
}
