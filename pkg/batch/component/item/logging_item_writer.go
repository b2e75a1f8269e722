package item

import (
	"context"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// LoggingItemWriter writes each item to the log at INFO.
type LoggingItemWriter[T any] struct {
	name string
}

var _ port.ItemWriter[any] = (*LoggingItemWriter[any])(nil)

// NewLoggingItemWriter creates a [LoggingItemWriter] tagging lines with name.
func NewLoggingItemWriter[T any](name string) *LoggingItemWriter[T] {
	return &LoggingItemWriter[T]{name: name}
}

func (w *LoggingItemWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	return nil
}

// Write logs items one per line.
func (w *LoggingItemWriter[T]) Write(ctx context.Context, _ tx.Tx, items []T) error {
	log := logger.With("writer", w.name)
	for _, it := range items {
		log.Infof("%+v", it)
	}
	return nil
}

func (w *LoggingItemWriter[T]) Close(ctx context.Context) error {
	return nil
}
