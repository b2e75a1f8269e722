package tx

import (
	"context"
	"database/sql"
)

type resourcelessTx struct{}

func (resourcelessTx) Unwrap() interface{} { return nil }

// ResourcelessTransactionManager is used by steps whose writers are not transactional,
// such as flat file writers. Commit and Rollback are no-ops.
type ResourcelessTransactionManager struct{}

// NewResourcelessTransactionManager creates a ResourcelessTransactionManager.
func NewResourcelessTransactionManager() *ResourcelessTransactionManager {
	return &ResourcelessTransactionManager{}
}

func (m *ResourcelessTransactionManager) Begin(ctx context.Context, _ ...*sql.TxOptions) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return resourcelessTx{}, nil
}

func (m *ResourcelessTransactionManager) Commit(Tx) error { return nil }
func (m *ResourcelessTransactionManager) Rollback(Tx) error { return nil }

var _ TransactionManager = (*ResourcelessTransactionManager)(nil)
