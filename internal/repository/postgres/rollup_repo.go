package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/NordCoder/Upwatch/internal/domain/rollup"
)

var (
	_ rollup.Repo  = (*RollupRepoImpl)(nil)
	_ rollup.Zones = (*ZoneRepoImpl)(nil)
)

type RollupRepoImpl struct{ db *DB }

func NewRollupRepo(db *DB) *RollupRepoImpl { return &RollupRepoImpl{db: db} }

const (
	qRollupMarkApplied = `
INSERT INTO rollup_applied (check_id)
VALUES ($1)
ON CONFLICT (check_id) DO NOTHING;`

	qRollupUpsert = `
INSERT INTO daily_rollups (monitor_id, date, total_checks, successful_checks,
                           response_time_sum_ms, response_time_count,
                           min_response_time_ms, max_response_time_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (monitor_id, date) DO UPDATE
SET total_checks         = daily_rollups.total_checks + EXCLUDED.total_checks,
    successful_checks    = daily_rollups.successful_checks + EXCLUDED.successful_checks,
    response_time_sum_ms = daily_rollups.response_time_sum_ms + EXCLUDED.response_time_sum_ms,
    response_time_count  = daily_rollups.response_time_count + EXCLUDED.response_time_count,
    min_response_time_ms = LEAST(daily_rollups.min_response_time_ms, EXCLUDED.min_response_time_ms),
    max_response_time_ms = GREATEST(daily_rollups.max_response_time_ms, EXCLUDED.max_response_time_ms);`

	qRollupRange = `
SELECT monitor_id, date, total_checks, successful_checks, response_time_sum_ms, response_time_count,
       min_response_time_ms, max_response_time_ms
FROM daily_rollups
WHERE monitor_id = $1 AND date BETWEEN $2 AND $3
ORDER BY date;`
)

func (r *RollupRepoImpl) MarkApplied(ctx context.Context, checkID int64) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qRollupMarkApplied, checkID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("mark rollup applied: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// Upsert relies on LEAST/GREATEST ignoring NULL arguments.
func (r *RollupRepoImpl) Upsert(ctx context.Context, d rollup.Daily) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qRollupUpsert,
		d.MonitorID, d.Date, d.TotalChecks, d.SuccessfulChecks,
		d.ResponseTimeSumMs, d.ResponseTimeCount, d.MinResponseTimeMs, d.MaxResponseTimeMs,
	); err != nil {
		return fmt.Errorf("upsert rollup: %w", err)
	}
	return nil
}

func (r *RollupRepoImpl) ListRange(ctx context.Context, monitorID int64, from, to time.Time) ([]rollup.Daily, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qRollupRange, monitorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query rollups: %w", err)
	}
	defer rows.Close()

	var out []rollup.Daily
	for rows.Next() {
		var d rollup.Daily
		if err := rows.Scan(&d.MonitorID, &d.Date, &d.TotalChecks, &d.SuccessfulChecks,
			&d.ResponseTimeSumMs, &d.ResponseTimeCount, &d.MinResponseTimeMs, &d.MaxResponseTimeMs); err != nil {
			return nil, fmt.Errorf("scan rollup: %w", err)
		}
		d.Date = time.Date(d.Date.Year(), d.Date.Month(), d.Date.Day(), 0, 0, 0, 0, time.UTC)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// ZoneRepoImpl resolves the reporting timezone from owner_settings, falling
// back to a configured default when the owner has none or it is invalid.
type ZoneRepoImpl struct {
	db       *DB
	fallback *time.Location
	log      *zap.Logger
}

func NewZoneRepo(db *DB, fallback *time.Location, log *zap.Logger) *ZoneRepoImpl {
	if fallback == nil {
		fallback = time.UTC
	}
	return &ZoneRepoImpl{db: db, fallback: fallback, log: log}
}

const qOwnerTimezone = `
SELECT s.timezone
FROM monitors m
JOIN owner_settings s ON s.owner_id = m.owner_id
WHERE m.id = $1;`

func (r *ZoneRepoImpl) Resolve(ctx context.Context, monitorID int64) (*time.Location, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var name string
	if err := r.db.Pool.QueryRow(ctx, qOwnerTimezone, monitorID).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.fallback, nil
		}
		return nil, fmt.Errorf("owner timezone: %w", err)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		r.log.Warn("invalid owner timezone, using default",
			zap.Int64("monitor_id", monitorID), zap.String("timezone", name), zap.Error(err))
		return r.fallback, nil
	}
	return loc, nil
}
