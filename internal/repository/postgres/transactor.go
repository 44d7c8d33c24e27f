package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var _ Transactor = (*TxManager)(nil)

// TxManager runs functions inside a transaction carried by the context.
// Repositories pick the transaction up through execQueryer.
type TxManager struct {
	db  *DB
	log *zap.Logger
}

func NewTransactor(db *DB, log *zap.Logger) *TxManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &TxManager{db: db, log: log}
}

const rollbackTimeout = 3 * time.Second

// WithTx commits when fn returns nil and rolls back otherwise, including on
// panic. Nested calls join the outer transaction. Errors from fn are returned
// unwrapped so callers can match sentinels such as ErrLeaseLost.
func (t *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	ctx, span := otel.Tracer("postgres").Start(ctx, "postgres.tx")
	defer span.End()

	tx, err := t.db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			t.rollback(ctx, tx)
			panic(p)
		}
		if err != nil {
			span.RecordError(err)
			t.rollback(ctx, tx)
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			span.RecordError(cerr)
			err = fmt.Errorf("commit: %w", cerr)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, tx))
}

// rollback survives cancellation of ctx so a shutdown does not leave the
// connection in a failed transaction.
func (t *TxManager) rollback(ctx context.Context, tx pgx.Tx) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := tx.Rollback(rctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		t.log.Error("rollback", zap.Error(err))
	}
}

type txKey struct{}

var ErrTxNotFound = errors.New("tx not found in context")

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok && tx != nil
}

// extractTx is for repository methods that only make sense inside a
// transaction, such as row locks.
func extractTx(ctx context.Context) (pgx.Tx, error) {
	tx, ok := txFrom(ctx)
	if !ok {
		return nil, ErrTxNotFound
	}
	return tx, nil
}

type execQueryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (db *DB) execQueryer(ctx context.Context) execQueryer {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db.Pool
}
