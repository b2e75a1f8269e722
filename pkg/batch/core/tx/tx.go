// Package tx abstracts the transaction that brackets each chunk commit.
//
// A step begins a transaction before writing a chunk, hands it to the writer, and
// commits or rolls it back as one unit. Writers that need the driver-level handle
// unwrap it with SQLTx or an adapter-specific helper.
package tx

import (
	"context"
	"database/sql"
)

// Tx represents an ongoing transaction.
type Tx interface {
	// Unwrap returns the driver-level transaction handle, or nil when the
	// transaction is not backed by a resource.
	Unwrap() interface{}
}

// TransactionManager manages the lifecycle of transactions (begin, commit, rollback).
type TransactionManager interface {
	// Begin starts a new transaction.
	// opts: Optional transaction options (e.g., isolation level, read-only flag).
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	// Commit commits the specified transaction.
	Commit(tx Tx) error
	// Rollback rolls back the specified transaction.
	Rollback(tx Tx) error
}

// SQLTxer is implemented by transactions that keep a *sql.Tx behind a
// higher-level session, such as a GORM transaction.
type SQLTxer interface {
	SQLTx() *sql.Tx
}

// SQLTx returns the *sql.Tx behind t, if any.
func SQLTx(t Tx) (*sql.Tx, bool) {
	if t == nil {
		return nil, false
	}
	if x, ok := t.(SQLTxer); ok {
		stx := x.SQLTx()
		return stx, stx != nil
	}
	stx, ok := t.Unwrap().(*sql.Tx)
	return stx, ok && stx != nil
}

func firstOption(opts []*sql.TxOptions) *sql.TxOptions {
	if len(opts) > 0 {
		return opts[0]
	}
	return nil
}

type txKey struct{}

// WithTx returns a context carrying t. Tasklet steps use it to hand the iteration's
// transaction to the tasklet.
func WithTx(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, txKey{}, t)
}

// FromContext returns the transaction stored by WithTx.
func FromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(txKey{}).(Tx)
	return t, ok && t != nil
}
