package memory

import (
	"context"
	"errors"
	"sync"

	"storefront-payments/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errNotSupported = errors.New("memory: not supported")

// Transactor implements ports.DBTransactor.
type Transactor struct {
	s *Store
}

var _ ports.DBTransactor = (*Transactor)(nil)

// Begin starts a transaction. Writes are visible immediately and undone
// on Rollback.
func (tr *Transactor) Begin(_ context.Context) (pgx.Tx, error) {
	return &tx{s: tr.s, held: make(map[string]chan struct{})}, nil
}

// tx is a pgx.Tx for the memory store. Only Commit and Rollback do work;
// the SQL methods are not supported.
type tx struct {
	s *Store

	mu   sync.Mutex
	held map[string]chan struct{}
	undo []func()
	done bool
}

func asTx(dbTx pgx.Tx) (*tx, error) {
	t, ok := dbTx.(*tx)
	if !ok {
		return nil, errForeignTx
	}
	return t, nil
}

func (t *tx) lockRow(ctx context.Context, orderNumber string) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	if _, ok := t.held[orderNumber]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	l := t.s.rowLock(orderNumber)
	select {
	case l <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.Lock()
	t.held[orderNumber] = l
	t.mu.Unlock()
	return nil
}

// onRollback is called with the store lock held.
func (t *tx) onRollback(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, fn)
}

func (t *tx) finish(rollback bool) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	t.done = true
	undo, held := t.undo, t.held
	t.undo, t.held = nil, nil
	t.mu.Unlock()

	if rollback && len(undo) > 0 {
		t.s.mu.Lock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		t.s.mu.Unlock()
	}

	for _, l := range held {
		<-l
	}
	return nil
}

func (t *tx) Commit(_ context.Context) error { return t.finish(false) }

// Rollback after Commit is a no-op, as callers defer it unconditionally.
func (t *tx) Rollback(_ context.Context) error {
	if err := t.finish(true); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

func (t *tx) Begin(_ context.Context) (pgx.Tx, error) { return nil, errNotSupported }
func (t *tx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, errNotSupported
}
func (t *tx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (t *tx) LargeObjects() pgx.LargeObjects                           { return pgx.LargeObjects{} }
func (t *tx) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, errNotSupported
}
func (t *tx) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNotSupported
}
func (t *tx) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errNotSupported
}
func (t *tx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row { return errRow{} }
func (t *tx) Conn() *pgx.Conn                                       { return nil }

type errRow struct{}

func (errRow) Scan(...any) error { return errNotSupported }
