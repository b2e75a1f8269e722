package tx_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
)

func TestSQLTransactionManager_CommitAndRollback(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tm := tx.NewSQLTransactionManager(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	t1, err := tm.Begin(ctx)
	require.NoError(t, err)
	stx, ok := tx.SQLTx(t1)
	assert.True(t, ok)
	assert.NotNil(t, stx)
	assert.NoError(t, tm.Commit(t1))

	mock.ExpectBegin()
	mock.ExpectRollback()
	t2, err := tm.Begin(ctx)
	require.NoError(t, err)
	assert.NoError(t, tm.Rollback(t2))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTransactionManager_BeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

	_, err = tx.NewSQLTransactionManager(db).Begin(context.Background())
	assert.ErrorContains(t, err, "connection reset")
}

func TestSQLTransactionManager_CommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tm := tx.NewSQLTransactionManager(db)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("disk full"))

	t1, err := tm.Begin(context.Background())
	require.NoError(t, err)
	assert.ErrorContains(t, tm.Commit(t1), "disk full")
}

func TestResourcelessTransactionManager(t *testing.T) {
	tm := tx.NewResourcelessTransactionManager()
	t1, err := tm.Begin(context.Background())
	require.NoError(t, err)
	_, ok := tx.SQLTx(t1)
	assert.False(t, ok)
	assert.NoError(t, tm.Commit(t1))
	assert.NoError(t, tm.Rollback(t1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tm.Begin(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
