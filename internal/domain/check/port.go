package check

import "context"

type Repo interface {
	Insert(ctx context.Context, c *Check) error
	Latest(ctx context.Context, monitorID int64) (*Check, error)
	ListRecent(ctx context.Context, monitorID int64, limit int) ([]*Check, error)
}
