package incident

import (
	"context"
	"time"
)

type Repo interface {
	// GetOpen returns nil without error when the monitor has no open incident.
	GetOpen(ctx context.Context, monitorID int64) (*Incident, error)
	Open(ctx context.Context, i *Incident) error
	Close(ctx context.Context, id int64, endedAt time.Time) error
	ListByMonitor(ctx context.Context, monitorID int64, limit int) ([]*Incident, error)
}
