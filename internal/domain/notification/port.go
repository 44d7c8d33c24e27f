package notification

import "context"

type Repo interface {
	Recipients(ctx context.Context, monitorID int64) (*Recipients, error)
	// Sent reports whether the channel was already notified about this
	// incident transition.
	Sent(ctx context.Context, incidentID, channelID int64, typ string) (bool, error)
	Create(ctx context.Context, n *Notification) error
}
