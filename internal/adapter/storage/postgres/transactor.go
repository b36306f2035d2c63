package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor. Every transaction it opens
// carries a lock_timeout so that a FOR UPDATE on a busy order row fails
// instead of queueing behind a stuck writer.
type Transactor struct {
	pool     Pool
	lockWait time.Duration
}

// NewTransactor wraps pool. A zero lockWait leaves the server default.
func NewTransactor(pool Pool, lockWait time.Duration) *Transactor {
	return &Transactor{pool: pool, lockWait: lockWait}
}

// Begin starts a transaction and applies the row lock timeout to it.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	if t.lockWait <= 0 {
		return tx, nil
	}

	// SET does not accept bind parameters.
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockWait.Milliseconds())
	if _, err := tx.Exec(ctx, stmt); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("setting lock timeout: %w", err)
	}
	return tx, nil
}
