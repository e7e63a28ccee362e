package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TxFn runs inside a transaction.
type TxFn func(tx *sqlx.Tx) error

// WithinTx runs fn inside a single transaction, rolling back on error. Every
// lifecycle operation executes exactly one such unit: turn mutation, audit
// insert and stats update either all commit or none do.
func WithinTx(ctx context.Context, db *sqlx.DB, fn TxFn) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
