package monitor

import (
	"context"
	"time"
)

type Completion struct {
	NextCheckAt          *time.Time
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
}

type Repo interface {
	Create(ctx context.Context, m *Monitor) error
	GetByID(ctx context.Context, id int64) (*Monitor, error)
	// Lock reads the monitor under a row lock. It must run inside a transaction.
	Lock(ctx context.Context, id int64) (*Monitor, error)
	// Update stores user-editable fields, activity, schedule and config version.
	// Streak counters and the lease are left untouched.
	Update(ctx context.Context, m *Monitor) error
	Delete(ctx context.Context, id int64) error

	// ClaimDue leases up to limit due, idle, active monitors in one atomic step.
	// A lease lasts the monitor's timeout plus leaseTTL.
	ClaimDue(ctx context.Context, limit int, leaseTTL time.Duration) ([]Claim, error)
	// ClaimByID leases a single monitor if it is active and idle, due or not.
	// It returns nil without error when the monitor is not claimable.
	ClaimByID(ctx context.Context, id int64, leaseTTL time.Duration) (*Claim, error)
	// Release drops the lease without touching next_check_at.
	Release(ctx context.Context, id int64, leaseToken string) error

	// RenewLease restarts an unexpired lease held by leaseToken for another
	// timeout plus leaseTTL. It returns ErrLeaseLost when the lease expired or
	// moved on.
	RenewLease(ctx context.Context, id int64, leaseToken string, leaseTTL time.Duration) error
	// LockLease locks the monitor row for completion when leaseToken still owns it.
	LockLease(ctx context.Context, id int64, leaseToken string) (*Monitor, error)
	// Complete clears the lease and stores the post-check schedule and streaks.
	Complete(ctx context.Context, id int64, c Completion) error
}
