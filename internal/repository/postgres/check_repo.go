package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Upwatch/internal/domain/check"
)

var _ check.Repo = (*CheckRepoImpl)(nil)

type CheckRepoImpl struct{ db *DB }

func NewCheckRepo(db *DB) *CheckRepoImpl { return &CheckRepoImpl{db: db} }

const (
	qCheckInsert = `
INSERT INTO checks (monitor_id, status, status_code, response_time_ms, error_message, checked_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id;`

	qCheckLatest = `
SELECT id, monitor_id, status, status_code, response_time_ms, error_message, checked_at
FROM checks
WHERE monitor_id = $1
ORDER BY checked_at DESC, id DESC
LIMIT 1;`

	qCheckRecent = `
SELECT id, monitor_id, status, status_code, response_time_ms, error_message, checked_at
FROM checks
WHERE monitor_id = $1
ORDER BY checked_at DESC, id DESC
LIMIT $2;`
)

func scanCheck(row pgx.Row, c *check.Check) error {
	var status string
	if err := row.Scan(&c.ID, &c.MonitorID, &status, &c.StatusCode, &c.ResponseTimeMs, &c.ErrorMessage, &c.CheckedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan check: %w", err)
	}
	c.Status = check.Status(status)
	return nil
}

func (r *CheckRepoImpl) Insert(ctx context.Context, c *check.Check) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if err := eq.QueryRow(ctx, qCheckInsert,
		c.MonitorID, string(c.Status), c.StatusCode, c.ResponseTimeMs, c.ErrorMessage, c.CheckedAt,
	).Scan(&c.ID); err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

func (r *CheckRepoImpl) Latest(ctx context.Context, monitorID int64) (*check.Check, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c check.Check
	if err := scanCheck(r.db.Pool.QueryRow(ctx, qCheckLatest, monitorID), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CheckRepoImpl) ListRecent(ctx context.Context, monitorID int64, limit int) ([]*check.Check, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qCheckRecent, monitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer rows.Close()

	out := make([]*check.Check, 0, limit)
	for rows.Next() {
		var c check.Check
		if err := scanCheck(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
