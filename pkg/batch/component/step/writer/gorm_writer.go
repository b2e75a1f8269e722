package writer

import (
	"context"
	"fmt"

	gormadapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// GormWriterConfig configures a GormItemWriter.
type GormWriterConfig struct {
	// Table overrides the table GORM derives from the item type.
	Table string `yaml:"table"`
	// BatchSize is the number of rows per INSERT statement. 0 inserts the whole chunk at once.
	BatchSize int `yaml:"batchSize"`
}

// GormItemWriter inserts items through the GORM session of the chunk transaction.
// T is the model type; items are inserted without a prior lookup.
type GormItemWriter[T any] struct {
	name string
	cfg  GormWriterConfig
}

var _ port.ItemWriter[any] = (*GormItemWriter[any])(nil)

// NewGormItemWriter creates a GormItemWriter.
func NewGormItemWriter[T any](name string, cfg GormWriterConfig) *GormItemWriter[T] {
	return &GormItemWriter[T]{name: name, cfg: cfg}
}

// NewGormItemWriterFromProperties decodes properties and creates a writer.
func NewGormItemWriterFromProperties[T any](name string, properties map[string]interface{}) (*GormItemWriter[T], error) {
	var cfg GormWriterConfig
	if err := configbinder.BindProperties(properties, &cfg); err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("failed to bind properties for %s", name), err, false, false)
	}
	return NewGormItemWriter[T](name, cfg), nil
}

func (w *GormItemWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error { return nil }

// Write inserts items. The transaction must come from a GormTransactionManager.
func (w *GormItemWriter[T]) Write(ctx context.Context, t tx.Tx, items []T) error {
	if len(items) == 0 {
		return nil
	}
	db, ok := gormadapter.DB(t)
	if !ok {
		return exception.NewWriteError(w.name, len(items), fmt.Errorf("chunk transaction is not a GORM session"))
	}
	db = db.WithContext(ctx)
	if w.cfg.Table != "" {
		db = db.Table(w.cfg.Table)
	}

	res := db
	if w.cfg.BatchSize > 0 {
		res = res.CreateInBatches(items, w.cfg.BatchSize)
	} else {
		res = res.Create(items)
	}
	if res.Error != nil {
		return exception.NewWriteError(w.name, len(items), res.Error)
	}
	logger.Debugf("GormItemWriter '%s': inserted %d rows.", w.name, res.RowsAffected)
	return nil
}

func (w *GormItemWriter[T]) Close(ctx context.Context) error { return nil }
