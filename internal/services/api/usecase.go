package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Upwatch/internal/domain"
	"github.com/NordCoder/Upwatch/internal/domain/check"
	"github.com/NordCoder/Upwatch/internal/domain/incident"
	"github.com/NordCoder/Upwatch/internal/domain/monitor"
	domrollup "github.com/NordCoder/Upwatch/internal/domain/rollup"
	"github.com/NordCoder/Upwatch/internal/repository/postgres"
	"github.com/NordCoder/Upwatch/internal/rollup"
)

const (
	MaxChecks       = 100
	MaxIncidents    = 100
	DefaultDays     = 30
	MaxDays         = 90
	defaultIncident = 50
)

var ErrBadRange = errors.New("out of range")

// Lifecycle is the management side, implemented by scheduler.Lifecycle.
type Lifecycle interface {
	Create(ctx context.Context, m *monitor.Monitor) (*monitor.Monitor, error)
	Update(ctx context.Context, next monitor.Monitor) (*monitor.Monitor, error)
	Pause(ctx context.Context, id int64) (*monitor.Monitor, error)
	Resume(ctx context.Context, id int64) (*monitor.Monitor, error)
	Delete(ctx context.Context, id int64) error
}

type MonitorReader interface {
	GetByID(ctx context.Context, id int64) (*monitor.Monitor, error)
}

type CheckReader interface {
	Latest(ctx context.Context, monitorID int64) (*check.Check, error)
	ListRecent(ctx context.Context, monitorID int64, limit int) ([]*check.Check, error)
}

type IncidentReader interface {
	ListByMonitor(ctx context.Context, monitorID int64, limit int) ([]*incident.Incident, error)
}

type RollupReader interface {
	ListRange(ctx context.Context, monitorID int64, from, to time.Time) ([]domrollup.Daily, error)
}

// Usecase serves the read side. Every query first resolves the monitor so an
// unknown id is reported as not found rather than as an empty result.
type Usecase struct {
	Monitors  MonitorReader
	Checks    CheckReader
	Incidents IncidentReader
	Rollups   RollupReader
	Zones     domrollup.Zones
	Clock     domain.Clock
}

func (u *Usecase) Monitor(ctx context.Context, id int64) (*monitor.Monitor, error) {
	return u.Monitors.GetByID(ctx, id)
}

// LatestCheck returns nil without error for a monitor that was never checked.
func (u *Usecase) LatestCheck(ctx context.Context, id int64) (*check.Check, error) {
	if _, err := u.Monitors.GetByID(ctx, id); err != nil {
		return nil, err
	}
	c, err := u.Checks.Latest(ctx, id)
	if errors.Is(err, postgres.ErrNotFound) {
		return nil, nil
	}
	return c, err
}

func (u *Usecase) RecentChecks(ctx context.Context, id int64, limit int) ([]*check.Check, error) {
	if limit < 1 || limit > MaxChecks {
		return nil, fmt.Errorf("limit must be within 1-%d: %w", MaxChecks, ErrBadRange)
	}
	if _, err := u.Monitors.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return u.Checks.ListRecent(ctx, id, limit)
}

func (u *Usecase) IncidentHistory(ctx context.Context, id int64, limit int) ([]*incident.Incident, error) {
	if limit == 0 {
		limit = defaultIncident
	}
	if limit < 1 || limit > MaxIncidents {
		return nil, fmt.Errorf("limit must be within 1-%d: %w", MaxIncidents, ErrBadRange)
	}
	if _, err := u.Monitors.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return u.Incidents.ListByMonitor(ctx, id, limit)
}

// Uptime reports the trailing days calendar days in the owner's timezone,
// today included.
func (u *Usecase) Uptime(ctx context.Context, id int64, days int) (rollup.Report, error) {
	if days < 1 || days > MaxDays {
		return rollup.Report{}, fmt.Errorf("days must be within 1-%d: %w", MaxDays, ErrBadRange)
	}
	if _, err := u.Monitors.GetByID(ctx, id); err != nil {
		return rollup.Report{}, err
	}
	loc, err := u.Zones.Resolve(ctx, id)
	if err != nil {
		return rollup.Report{}, err
	}
	from, to := rollup.Window(u.Clock.Now(), loc, days)
	rows, err := u.Rollups.ListRange(ctx, id, from, to)
	if err != nil {
		return rollup.Report{}, err
	}
	return rollup.NewReport(id, from, to, rows), nil
}
