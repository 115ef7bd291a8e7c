package repository

import (
	"context"
	"database/sql"
)

// TxRunner runs a function inside a single database transaction.
type TxRunner struct {
	db *sql.DB
}

// NewTxRunner returns a TxRunner bound to db.
func NewTxRunner(db *sql.DB) *TxRunner { return &TxRunner{db: db} }

// WithTx begins a transaction, calls fn and commits when fn returns nil.
// Any error from fn, or a panic, rolls the transaction back.  Row locks
// taken inside fn (SELECT ... FOR UPDATE) are held until commit.
func (r *TxRunner) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
