package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Upwatch/internal/domain/monitor"
)

var _ monitor.Repo = (*MonitorRepoImpl)(nil)

type MonitorRepoImpl struct {
	db *DB
}

func NewMonitorRepo(db *DB) *MonitorRepoImpl { return &MonitorRepoImpl{db: db} }

const monitorCols = `id, owner_id, url, method, interval_sec, timeout_ms, expected_status_code, is_active,
    failure_confirmation_threshold, recovery_confirmation_threshold, next_check_at, config_version,
    consecutive_failures, consecutive_successes, created_at, updated_at`

const (
	qMonitorInsert = `
INSERT INTO monitors (owner_id, url, method, interval_sec, timeout_ms, expected_status_code, is_active,
                      failure_confirmation_threshold, recovery_confirmation_threshold, next_check_at, config_version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + monitorCols + `;`

	qMonitorByID = `SELECT ` + monitorCols + ` FROM monitors WHERE id = $1;`

	qMonitorLock = `SELECT ` + monitorCols + ` FROM monitors WHERE id = $1 FOR UPDATE;`

	qMonitorUpdate = `
UPDATE monitors
SET url = $2,
    method = $3,
    interval_sec = $4,
    timeout_ms = $5,
    expected_status_code = $6,
    is_active = $7,
    failure_confirmation_threshold = $8,
    recovery_confirmation_threshold = $9,
    next_check_at = $10,
    config_version = $11,
    updated_at = now()
WHERE id = $1
RETURNING ` + monitorCols + `;`

	qMonitorDelete = `DELETE FROM monitors WHERE id = $1;`

	qClaimDue = `
WITH due AS (
    SELECT id
    FROM monitors
    WHERE is_active
      AND next_check_at <= now()
      AND (lease_until IS NULL OR lease_until < now())
    ORDER BY next_check_at
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
UPDATE monitors m
SET lease_token = gen_random_uuid(),
    lease_until = now() + m.timeout_ms * interval '1 millisecond' + $2::interval
FROM due
WHERE m.id = due.id
RETURNING m.id, m.owner_id, m.url, m.method, m.interval_sec, m.timeout_ms, m.expected_status_code, m.is_active,
    m.failure_confirmation_threshold, m.recovery_confirmation_threshold, m.next_check_at, m.config_version,
    m.consecutive_failures, m.consecutive_successes, m.created_at, m.updated_at, m.lease_token::text;`

	qClaimByID = `
UPDATE monitors
SET lease_token = $2::uuid,
    lease_until = now() + timeout_ms * interval '1 millisecond' + $3::interval
WHERE id = (
    SELECT id
    FROM monitors
    WHERE id = $1
      AND is_active
      AND (lease_until IS NULL OR lease_until < now())
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + monitorCols + `;`

	qRelease = `
UPDATE monitors
SET lease_token = NULL, lease_until = NULL
WHERE id = $1 AND lease_token = $2::uuid;`

	qRenewLease = `
UPDATE monitors
SET lease_until = now() + timeout_ms * interval '1 millisecond' + $3::interval
WHERE id = $1 AND lease_token = $2::uuid AND lease_until > now();`

	qLockLease = `
SELECT ` + monitorCols + `
FROM monitors
WHERE id = $1 AND lease_token = $2::uuid
FOR UPDATE;`

	qComplete = `
UPDATE monitors
SET lease_token = NULL,
    lease_until = NULL,
    next_check_at = $2,
    consecutive_failures = $3,
    consecutive_successes = $4,
    updated_at = now()
WHERE id = $1;`
)

func scanMonitor(row pgx.Row, m *monitor.Monitor, extra ...any) error {
	var (
		intervalSec int
		timeoutMs   int
		method      string
	)
	dest := []any{
		&m.ID,
		&m.OwnerID,
		&m.URL,
		&method,
		&intervalSec,
		&timeoutMs,
		&m.ExpectedStatusCode,
		&m.Active,
		&m.FailureThreshold,
		&m.RecoveryThreshold,
		&m.NextCheckAt,
		&m.ConfigVersion,
		&m.ConsecutiveFailures,
		&m.ConsecutiveSuccesses,
		&m.CreatedAt,
		&m.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan monitor: %w", err)
	}
	m.Method = monitor.Method(method)
	m.Interval = time.Duration(intervalSec) * time.Second
	m.Timeout = time.Duration(timeoutMs) * time.Millisecond
	return nil
}

func (r *MonitorRepoImpl) Create(ctx context.Context, m *monitor.Monitor) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.execQueryer(ctx).QueryRow(ctx, qMonitorInsert,
		m.OwnerID,
		m.URL,
		string(m.Method),
		int(m.Interval/time.Second),
		int(m.Timeout/time.Millisecond),
		m.ExpectedStatusCode,
		m.Active,
		m.FailureThreshold,
		m.RecoveryThreshold,
		m.NextCheckAt,
		m.ConfigVersion,
	)
	return scanMonitor(row, m)
}

func (r *MonitorRepoImpl) GetByID(ctx context.Context, id int64) (*monitor.Monitor, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var m monitor.Monitor
	if err := scanMonitor(r.db.execQueryer(ctx).QueryRow(ctx, qMonitorByID, id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MonitorRepoImpl) Lock(ctx context.Context, id int64) (*monitor.Monitor, error) {
	if _, err := extractTx(ctx); err != nil {
		return nil, fmt.Errorf("lock monitor: %w", err)
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var m monitor.Monitor
	if err := scanMonitor(r.db.execQueryer(ctx).QueryRow(ctx, qMonitorLock, id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MonitorRepoImpl) Update(ctx context.Context, m *monitor.Monitor) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.execQueryer(ctx).QueryRow(ctx, qMonitorUpdate,
		m.ID,
		m.URL,
		string(m.Method),
		int(m.Interval/time.Second),
		int(m.Timeout/time.Millisecond),
		m.ExpectedStatusCode,
		m.Active,
		m.FailureThreshold,
		m.RecoveryThreshold,
		m.NextCheckAt,
		m.ConfigVersion,
	)
	return scanMonitor(row, m)
}

func (r *MonitorRepoImpl) Delete(ctx context.Context, id int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qMonitorDelete, id)
	if err != nil {
		return fmt.Errorf("delete monitor: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MonitorRepoImpl) ClaimDue(ctx context.Context, limit int, leaseTTL time.Duration) ([]monitor.Claim, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qClaimDue, limit, pgInterval(leaseTTL))
	if err != nil {
		return nil, fmt.Errorf("claim due: %w", err)
	}
	defer rows.Close()

	var out []monitor.Claim
	for rows.Next() {
		var c monitor.Claim
		if err := scanMonitor(rows, &c.Monitor, &c.LeaseToken); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *MonitorRepoImpl) ClaimByID(ctx context.Context, id int64, leaseTTL time.Duration) (*monitor.Claim, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	c := monitor.Claim{LeaseToken: uuid.NewString()}
	row := r.db.execQueryer(ctx).QueryRow(ctx, qClaimByID, id, c.LeaseToken, pgInterval(leaseTTL))
	if err := scanMonitor(row, &c.Monitor); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *MonitorRepoImpl) Release(ctx context.Context, id int64, leaseToken string) error {
	if _, err := uuid.Parse(leaseToken); err != nil {
		return fmt.Errorf("release: bad lease token: %w", err)
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qRelease, id, leaseToken); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

func (r *MonitorRepoImpl) RenewLease(ctx context.Context, id int64, leaseToken string, leaseTTL time.Duration) error {
	if _, err := uuid.Parse(leaseToken); err != nil {
		return ErrLeaseLost
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qRenewLease, id, leaseToken, pgInterval(leaseTTL))
	if err != nil {
		return fmt.Errorf("renew lease: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (r *MonitorRepoImpl) LockLease(ctx context.Context, id int64, leaseToken string) (*monitor.Monitor, error) {
	if _, err := uuid.Parse(leaseToken); err != nil {
		return nil, ErrLeaseLost
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var m monitor.Monitor
	if err := scanMonitor(r.db.execQueryer(ctx).QueryRow(ctx, qLockLease, id, leaseToken), &m); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrLeaseLost
		}
		return nil, err
	}
	return &m, nil
}

func (r *MonitorRepoImpl) Complete(ctx context.Context, id int64, c monitor.Completion) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qComplete, id, c.NextCheckAt, c.ConsecutiveFailures, c.ConsecutiveSuccesses)
	if err != nil {
		return fmt.Errorf("complete monitor: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
