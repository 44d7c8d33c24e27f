package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/NordCoder/Upwatch/internal/domain"
	"github.com/NordCoder/Upwatch/internal/domain/monitor"
	"github.com/NordCoder/Upwatch/internal/repository/postgres"
)

type Monitors interface {
	Create(ctx context.Context, m *monitor.Monitor) error
	Lock(ctx context.Context, id int64) (*monitor.Monitor, error)
	Update(ctx context.Context, m *monitor.Monitor) error
	Delete(ctx context.Context, id int64) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, monitorID int64) (bool, error)
}

// Lifecycle applies management operations to monitors and keeps
// next_check_at consistent with them. Transitions that require an immediate
// check dispatch it once the change is committed.
type Lifecycle struct {
	Monitors   Monitors
	Tx         postgres.Transactor
	Dispatcher Dispatcher
	Clock      domain.Clock
	Log        *zap.Logger
}

func NewLifecycle(monitors Monitors, tx postgres.Transactor, d Dispatcher, clock domain.Clock, log *zap.Logger) *Lifecycle {
	return &Lifecycle{Monitors: monitors, Tx: tx, Dispatcher: d, Clock: clock, Log: log}
}

func (l *Lifecycle) Create(ctx context.Context, m *monitor.Monitor) (*monitor.Monitor, error) {
	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	dispatch := monitor.OnCreate(m, l.Clock.Now())
	if err := l.Monitors.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create monitor: %w", err)
	}
	if dispatch {
		l.kick(ctx, m.ID)
	}
	return m, nil
}

// Update replaces the user-editable fields of monitor next.ID.
func (l *Lifecycle) Update(ctx context.Context, next monitor.Monitor) (*monitor.Monitor, error) {
	next.ApplyDefaults()
	if err := next.Validate(); err != nil {
		return nil, err
	}

	var dispatch bool
	err := l.Tx.WithTx(ctx, func(ctx context.Context) error {
		prev, err := l.Monitors.Lock(ctx, next.ID)
		if err != nil {
			return err
		}
		dispatch = monitor.OnUpdate(*prev, &next, l.Clock.Now())
		return l.Monitors.Update(ctx, &next)
	})
	if err != nil {
		return nil, fmt.Errorf("update monitor %d: %w", next.ID, err)
	}
	if dispatch {
		l.kick(ctx, next.ID)
	}
	return &next, nil
}

func (l *Lifecycle) Pause(ctx context.Context, id int64) (*monitor.Monitor, error) {
	m, _, err := l.toggle(ctx, id, func(m *monitor.Monitor) bool { return monitor.Pause(m) })
	if err != nil {
		return nil, fmt.Errorf("pause monitor %d: %w", id, err)
	}
	return m, nil
}

func (l *Lifecycle) Resume(ctx context.Context, id int64) (*monitor.Monitor, error) {
	m, changed, err := l.toggle(ctx, id, func(m *monitor.Monitor) bool { return monitor.Resume(m, l.Clock.Now()) })
	if err != nil {
		return nil, fmt.Errorf("resume monitor %d: %w", id, err)
	}
	if changed {
		l.kick(ctx, id)
	}
	return m, nil
}

// Delete removes the monitor with its history. A check still in flight loses
// its lease and is dropped on completion.
func (l *Lifecycle) Delete(ctx context.Context, id int64) error {
	if err := l.Monitors.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete monitor %d: %w", id, err)
	}
	return nil
}

func (l *Lifecycle) toggle(ctx context.Context, id int64, apply func(m *monitor.Monitor) bool) (*monitor.Monitor, bool, error) {
	var (
		out     *monitor.Monitor
		changed bool
	)
	err := l.Tx.WithTx(ctx, func(ctx context.Context) error {
		m, err := l.Monitors.Lock(ctx, id)
		if err != nil {
			return err
		}
		out = m
		if changed = apply(m); !changed {
			return nil
		}
		return l.Monitors.Update(ctx, m)
	})
	return out, changed, err
}

// kick dispatches a check right away. Failures are only logged: next_check_at
// already equals now, so the next tick picks the monitor up.
func (l *Lifecycle) kick(ctx context.Context, id int64) {
	ok, err := l.Dispatcher.Dispatch(ctx, id)
	if err != nil {
		l.Log.Warn("immediate dispatch failed", zap.Int64("monitor_id", id), zap.Error(err))
		return
	}
	if !ok {
		l.Log.Debug("monitor in flight, left for the next tick", zap.Int64("monitor_id", id))
	}
}
