package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Upwatch/internal/domain/incident"
)

var _ incident.Repo = (*IncidentRepoImpl)(nil)

type IncidentRepoImpl struct{ db *DB }

func NewIncidentRepo(db *DB) *IncidentRepoImpl { return &IncidentRepoImpl{db: db} }

const (
	qIncidentOpen = `
INSERT INTO incidents (monitor_id, started_at, cause)
VALUES ($1, $2, $3)
RETURNING id;`

	qIncidentGetOpen = `
SELECT id, monitor_id, started_at, ended_at, cause
FROM incidents
WHERE monitor_id = $1 AND ended_at IS NULL;`

	qIncidentClose = `
UPDATE incidents
SET ended_at = $2
WHERE id = $1 AND ended_at IS NULL;`

	qIncidentsByMonitor = `
SELECT id, monitor_id, started_at, ended_at, cause
FROM incidents
WHERE monitor_id = $1
ORDER BY started_at DESC
LIMIT $2;`
)

func scanIncident(row pgx.Row, i *incident.Incident) error {
	if err := row.Scan(&i.ID, &i.MonitorID, &i.StartedAt, &i.EndedAt, &i.Cause); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan incident: %w", err)
	}
	return nil
}

func (r *IncidentRepoImpl) GetOpen(ctx context.Context, monitorID int64) (*incident.Incident, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var i incident.Incident
	if err := scanIncident(r.db.execQueryer(ctx).QueryRow(ctx, qIncidentGetOpen, monitorID), &i); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}

func (r *IncidentRepoImpl) Open(ctx context.Context, i *incident.Incident) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.execQueryer(ctx).QueryRow(ctx, qIncidentOpen, i.MonitorID, i.StartedAt, i.Cause).Scan(&i.ID); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("open incident: %w", err)
	}
	return nil
}

func (r *IncidentRepoImpl) Close(ctx context.Context, id int64, endedAt time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qIncidentClose, id, endedAt)
	if err != nil {
		return fmt.Errorf("close incident: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *IncidentRepoImpl) ListByMonitor(ctx context.Context, monitorID int64, limit int) ([]*incident.Incident, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qIncidentsByMonitor, monitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	defer rows.Close()

	out := make([]*incident.Incident, 0)
	for rows.Next() {
		var i incident.Incident
		if err := scanIncident(rows, &i); err != nil {
			return nil, err
		}
		out = append(out, &i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
