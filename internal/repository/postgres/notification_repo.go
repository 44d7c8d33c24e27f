package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Upwatch/internal/domain/notification"
)

var _ notification.Repo = (*NotificationRepoImpl)(nil)

type NotificationRepoImpl struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepoImpl { return &NotificationRepoImpl{db: db} }

const (
	qNotifMonitor = `SELECT owner_id, url FROM monitors WHERE id = $1;`

	qNotifChannels = `
SELECT id, owner_id, kind, name, target, enabled
FROM notifiers
WHERE owner_id = $1 AND enabled
ORDER BY id;`

	qNotifSent = `
SELECT EXISTS (
    SELECT 1 FROM notifications
    WHERE incident_id = $1 AND notifier_id = $2 AND type = $3
);`

	qNotifInsert = `
INSERT INTO notifications (monitor_id, incident_id, notifier_id, type, sent_at, payload)
VALUES ($1, $2, $3, $4, COALESCE($5, now()), $6)
ON CONFLICT (incident_id, notifier_id, type) DO NOTHING
RETURNING id, sent_at;`
)

func (r *NotificationRepoImpl) Recipients(ctx context.Context, monitorID int64) (*notification.Recipients, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rc := notification.Recipients{MonitorID: monitorID}
	if err := r.db.Pool.QueryRow(ctx, qNotifMonitor, monitorID).Scan(&rc.OwnerID, &rc.MonitorURL); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("notification monitor: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, qNotifChannels, rc.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("query notifiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ch notification.Channel
		var kind string
		if err := rows.Scan(&ch.ID, &ch.OwnerID, &kind, &ch.Name, &ch.Target, &ch.Enabled); err != nil {
			return nil, fmt.Errorf("scan notifier: %w", err)
		}
		ch.Kind = notification.ChannelKind(kind)
		rc.Channels = append(rc.Channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return &rc, nil
}

func (r *NotificationRepoImpl) Sent(ctx context.Context, incidentID, channelID int64, typ string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var ok bool
	if err := r.db.Pool.QueryRow(ctx, qNotifSent, incidentID, channelID, typ).Scan(&ok); err != nil {
		return false, fmt.Errorf("notification sent: %w", err)
	}
	return ok, nil
}

func (r *NotificationRepoImpl) Create(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.Pool.QueryRow(ctx, qNotifInsert,
		n.MonitorID,
		n.IncidentID,
		n.ChannelID,
		n.Type,
		nullTime(n.SentAt),
		n.Payload,
	).Scan(&n.ID, &n.SentAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrConflict
	case err != nil:
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
