// Package store provides the transactional boundary shared by the registry
// store implementations.
package store

import (
	"context"
	"database/sql"
	"time"

	dErrors "github.com/AstraSyncAI/astrasync-api/pkg/domain-errors"
	txcontext "github.com/AstraSyncAI/astrasync-api/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// PostgresTx runs callbacks inside one database transaction. The transaction
// rides the context, so any store method called within the callback joins it.
type PostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresTx constructs a PostgresTx over the shared handle.
func NewPostgresTx(db *sql.DB) *PostgresTx {
	return &PostgresTx{db: db}
}

// RunInTx begins a transaction, runs fn with it in the context, and commits.
// Any error from fn rolls the whole transaction back.
func (t *PostgresTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
