package rollup

import (
	"context"
	"time"
)

type Repo interface {
	// MarkApplied records that checkID was folded into a rollup. It reports
	// false when the check had already been applied. A check that no longer
	// exists is reported as not found.
	MarkApplied(ctx context.Context, checkID int64) (bool, error)
	// Upsert adds delta to the (monitor, date) row, creating it on first use.
	Upsert(ctx context.Context, delta Daily) error
	ListRange(ctx context.Context, monitorID int64, from, to time.Time) ([]Daily, error)
}

// Zones resolves the reporting timezone of a monitor's owner.
type Zones interface {
	Resolve(ctx context.Context, monitorID int64) (*time.Location, error)
}
