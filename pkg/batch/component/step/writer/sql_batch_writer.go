package writer

import (
	"context"
	"fmt"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// SQLBatchWriterConfig configures a SQLBatchItemWriter.
type SQLBatchWriterConfig struct {
	// SQL is the statement executed once per item, with positional placeholders.
	SQL string `yaml:"sql"`
	// AssertUpdates fails the batch when a statement affects no rows.
	AssertUpdates bool `yaml:"assertUpdates"`
}

// ParameterExtractor returns the statement arguments for an item, in placeholder order.
type ParameterExtractor[T any] func(item T) ([]interface{}, error)

// SQLBatchItemWriter executes one prepared statement per item inside the chunk
// transaction. The transaction must expose a *sql.Tx (see tx.SQLTx).
type SQLBatchItemWriter[T any] struct {
	name      string
	cfg       SQLBatchWriterConfig
	extractor ParameterExtractor[T]
}

var _ port.ItemWriter[any] = (*SQLBatchItemWriter[any])(nil)

// NewSQLBatchItemWriter creates a writer for cfg.SQL.
//
// Parameters:
//
//	name: The writer name, used in logs and errors.
//	cfg: The statement and update assertion.
//	extractor: Maps an item to the statement arguments.
func NewSQLBatchItemWriter[T any](name string, cfg SQLBatchWriterConfig, extractor ParameterExtractor[T]) (*SQLBatchItemWriter[T], error) {
	if cfg.SQL == "" {
		return nil, exception.NewBatchErrorf("writer", "%s: sql must be configured", name)
	}
	if extractor == nil {
		return nil, exception.NewBatchErrorf("writer", "%s: a parameter extractor is required", name)
	}
	return &SQLBatchItemWriter[T]{name: name, cfg: cfg, extractor: extractor}, nil
}

// NewSQLBatchItemWriterFromProperties decodes properties and creates a writer.
// assertUpdates defaults to true.
func NewSQLBatchItemWriterFromProperties[T any](name string, properties map[string]interface{}, extractor ParameterExtractor[T]) (*SQLBatchItemWriter[T], error) {
	cfg := SQLBatchWriterConfig{AssertUpdates: true}
	if err := configbinder.BindProperties(properties, &cfg); err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("failed to bind properties for %s", name), err, false, false)
	}
	return NewSQLBatchItemWriter(name, cfg, extractor)
}

func (w *SQLBatchItemWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	logger.Debugf("SQLBatchItemWriter '%s': opened.", w.name)
	return nil
}

// Write executes the statement for every item using the chunk transaction.
func (w *SQLBatchItemWriter[T]) Write(ctx context.Context, t tx.Tx, items []T) error {
	if len(items) == 0 {
		return nil
	}
	stx, ok := tx.SQLTx(t)
	if !ok {
		return exception.NewWriteError(w.name, len(items), fmt.Errorf("chunk transaction is not backed by database/sql"))
	}

	stmt, err := stx.PrepareContext(ctx, w.cfg.SQL)
	if err != nil {
		return exception.NewWriteError(w.name, len(items), fmt.Errorf("prepare: %w", err))
	}
	defer stmt.Close()

	for i, item := range items {
		args, err := w.extractor(item)
		if err != nil {
			return exception.NewWriteError(w.name, len(items), fmt.Errorf("item %d: %w", i, err))
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return exception.NewWriteError(w.name, len(items), fmt.Errorf("item %d: %w", i, err))
		}
		if w.cfg.AssertUpdates {
			n, err := res.RowsAffected()
			if err != nil {
				return exception.NewWriteError(w.name, len(items), fmt.Errorf("item %d: %w", i, err))
			}
			if n == 0 {
				return exception.NewWriteError(w.name, len(items), fmt.Errorf("item %d did not update any row", i))
			}
		}
	}
	logger.Debugf("SQLBatchItemWriter '%s': wrote %d items.", w.name, len(items))
	return nil
}

func (w *SQLBatchItemWriter[T]) Close(ctx context.Context) error { return nil }
