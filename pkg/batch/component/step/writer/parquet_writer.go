package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	pqwriter "github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// ParquetWriterConfig holds the configuration for ParquetItemWriter.
type ParquetWriterConfig struct {
	// OutputBaseDir is the directory, local or gs://, receiving the part files.
	OutputBaseDir string `yaml:"outputBaseDir"`
	// CompressionType is "SNAPPY" (default), "GZIP" or "NONE".
	CompressionType string `yaml:"compressionType"`
}

// ParquetItemWriter writes every chunk as one Parquet part file per partition.
//
// Part files are numbered by a sequence kept in the step's execution context, so a
// restarted step overwrites the part of a chunk that was written but never committed
// instead of leaving a duplicate next to it. T must carry parquet-go struct tags.
type ParquetItemWriter[T any] struct {
	name             string
	cfg              ParquetWriterConfig
	codec            parquet.CompressionCodec
	resolver         *storage.Resolver
	itemPrototype    *T
	partitionKeyFunc func(T) (string, error)

	ec model.ExecutionContext
}

var _ port.ItemWriter[any] = (*ParquetItemWriter[any])(nil)

// NewParquetItemWriter creates a ParquetItemWriter.
//
// Parameters:
//
//	name: The unique name of the writer.
//	properties: Configuration properties for the writer.
//	resolver: Resolves the output locations.
//	itemPrototype: A pointer to a zero value of T, used for schema reflection.
//	partitionKeyFunc: Extracts a Hive-style partition directory (e.g. "dt=2024-01-01")
//	  from an item. Nil writes every part directly under OutputBaseDir.
func NewParquetItemWriter[T any](
	name string,
	properties map[string]interface{},
	resolver *storage.Resolver,
	itemPrototype *T,
	partitionKeyFunc func(T) (string, error),
) (*ParquetItemWriter[T], error) {
	var cfg ParquetWriterConfig
	if err := configbinder.BindProperties(properties, &cfg); err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("failed to bind properties for %s", name), err, false, false)
	}
	if cfg.OutputBaseDir == "" {
		return nil, exception.NewBatchErrorf("writer", "ParquetItemWriter '%s' requires 'outputBaseDir' property.", name)
	}
	if cfg.CompressionType == "" {
		cfg.CompressionType = "SNAPPY"
	}
	codec, err := compressionCodec(cfg.CompressionType)
	if err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("invalid compression type for %s", name), err, false, false)
	}
	if itemPrototype == nil {
		itemPrototype = new(T)
	}
	return &ParquetItemWriter[T]{
		name:             name,
		cfg:              cfg,
		codec:            codec,
		resolver:         resolver,
		itemPrototype:    itemPrototype,
		partitionKeyFunc: partitionKeyFunc,
	}, nil
}

func (w *ParquetItemWriter[T]) sequenceKey() string {
	return w.name + ".part"
}

func (w *ParquetItemWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	w.ec = ec
	seq, _ := ec.GetInt(w.sequenceKey())
	logger.Debugf("ParquetItemWriter '%s' opened at part %d, base directory %s.", w.name, seq, w.cfg.OutputBaseDir)
	return nil
}

// Write encodes items, grouped by partition, and uploads one part file per partition.
func (w *ParquetItemWriter[T]) Write(ctx context.Context, _ tx.Tx, items []T) error {
	if len(items) == 0 {
		return nil
	}
	if w.ec == nil {
		return exception.NewWriteError(w.name, len(items), fmt.Errorf("writer is not open"))
	}

	partitions := make(map[string][]T)
	for _, item := range items {
		key := ""
		if w.partitionKeyFunc != nil {
			k, err := w.partitionKeyFunc(item)
			if err != nil {
				return exception.NewWriteError(w.name, len(items), fmt.Errorf("partition key: %w", err))
			}
			key = k
		}
		partitions[key] = append(partitions[key], item)
	}
	keys := make([]string, 0, len(partitions))
	for k := range partitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seq, _ := w.ec.GetInt(w.sequenceKey())
	var errs *multierror.Error
	for _, key := range keys {
		location := w.partLocation(key, seq)
		if err := w.writePart(ctx, location, partitions[key]); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", location, err))
			continue
		}
		logger.Debugf("ParquetItemWriter '%s': wrote %d rows to %s.", w.name, len(partitions[key]), location)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return exception.NewWriteError(w.name, len(items), err)
	}
	w.ec.Put(w.sequenceKey(), seq+1)
	return nil
}

func (w *ParquetItemWriter[T]) partLocation(partition string, seq int) string {
	base := strings.TrimSuffix(w.cfg.OutputBaseDir, "/")
	name := fmt.Sprintf("part-%05d.parquet", seq)
	if partition == "" {
		return base + "/" + name
	}
	return base + "/" + path.Join(partition, name)
}

func (w *ParquetItemWriter[T]) writePart(ctx context.Context, location string, items []T) (err error) {
	buf := new(bytes.Buffer)
	pw, err := pqwriter.NewParquetWriterFromWriter(buf, w.itemPrototype, 1)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = w.codec
	for _, item := range items {
		if err := pw.Write(item); err != nil {
			return fmt.Errorf("encode item: %w", err)
		}
	}
	// parquet-go panics on some schema mismatches during WriteStop.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked during WriteStop: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet file: %w", err)
	}

	res, err := w.resolver.Resolve(ctx, location)
	if err != nil {
		return err
	}
	out, err := res.Create(ctx, false)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, buf); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func (w *ParquetItemWriter[T]) Close(ctx context.Context) error {
	w.ec = nil
	return nil
}

// compressionCodec returns the Parquet compression codec for a name.
func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}
