package gorm

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

// gormTx is a tx.Tx over a GORM transaction session.
type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) Unwrap() interface{} { return t.db }

// SQLTx exposes the *sql.Tx behind the session for writers using database/sql.
func (t *gormTx) SQLTx() *sql.Tx {
	stx, _ := t.db.Statement.ConnPool.(*sql.Tx)
	return stx
}

// DB returns the GORM session bound to t, if t was begun by a GormTransactionManager.
func DB(t tx.Tx) (*gorm.DB, bool) {
	if t == nil {
		return nil, false
	}
	db, ok := t.Unwrap().(*gorm.DB)
	return db, ok && db != nil
}

// GormTransactionManager implements tx.TransactionManager with GORM sessions.
type GormTransactionManager struct {
	db *gorm.DB
}

var _ tx.TransactionManager = (*GormTransactionManager)(nil)

// NewGormTransactionManager creates a transaction manager over db.
func NewGormTransactionManager(db *gorm.DB) *GormTransactionManager {
	return &GormTransactionManager{db: db}
}

// Begin starts a transaction bound to ctx.
func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	session := m.db.WithContext(ctx).Begin(opts...)
	if session.Error != nil {
		return nil, exception.NewBatchError("tx", "failed to begin transaction", session.Error, false, true)
	}
	return &gormTx{db: session}, nil
}

// Commit commits t.
func (m *GormTransactionManager) Commit(t tx.Tx) error {
	db, ok := DB(t)
	if !ok {
		return exception.NewBatchErrorf("tx", "commit: %T is not a GORM transaction", t)
	}
	if err := db.Commit().Error; err != nil {
		return exception.NewBatchError("tx", "failed to commit transaction", err, false, false)
	}
	return nil
}

// Rollback rolls t back. Rolling back a finished transaction is not an error.
func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	db, ok := DB(t)
	if !ok {
		return exception.NewBatchErrorf("tx", "rollback: %T is not a GORM transaction", t)
	}
	if err := db.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		return exception.NewBatchError("tx", "failed to roll back transaction", err, false, false)
	}
	return nil
}
