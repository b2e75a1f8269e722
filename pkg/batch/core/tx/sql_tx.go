package tx

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Unwrap() interface{} { return t.tx }

// SQLTransactionManager manages transactions on a *sql.DB.
type SQLTransactionManager struct {
	db *sql.DB
}

// NewSQLTransactionManager creates a SQLTransactionManager.
func NewSQLTransactionManager(db *sql.DB) *SQLTransactionManager {
	return &SQLTransactionManager{db: db}
}

// Begin starts a transaction on the underlying database.
func (m *SQLTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error) {
	t, err := m.db.BeginTx(ctx, firstOption(opts))
	if err != nil {
		return nil, exception.NewBatchError("tx", "failed to begin transaction", err, false, true)
	}
	return &sqlTx{tx: t}, nil
}

// Commit commits t.
func (m *SQLTransactionManager) Commit(t Tx) error {
	st, ok := t.(*sqlTx)
	if !ok {
		return exception.NewBatchErrorf("tx", "unexpected transaction type %T", t)
	}
	if err := st.tx.Commit(); err != nil {
		return exception.NewBatchError("tx", "failed to commit transaction", err, false, false)
	}
	return nil
}

// Rollback rolls back t. Rolling back a finished transaction is not an error.
func (m *SQLTransactionManager) Rollback(t Tx) error {
	st, ok := t.(*sqlTx)
	if !ok {
		return exception.NewBatchErrorf("tx", "unexpected transaction type %T", t)
	}
	if err := st.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return exception.NewBatchError("tx", "failed to roll back transaction", err, false, false)
	}
	return nil
}

var _ TransactionManager = (*SQLTransactionManager)(nil)
