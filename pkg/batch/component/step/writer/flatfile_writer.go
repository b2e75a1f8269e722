// Package writer provides item writers for delimited text files, relational tables
// and Parquet files.
package writer

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// FlatFileWriterConfig configures a FlatFileItemWriter.
type FlatFileWriterConfig struct {
	// Resource is the output location (path, file:// or gs:// URI).
	Resource string `yaml:"resource"`
	// Delimiter separates fields. Defaults to ",".
	Delimiter string `yaml:"delimiter"`
	// Header is written as one line when the stream is opened. Empty means no header.
	Header string `yaml:"header"`
	// Footer is written verbatim when the stream is closed. Empty means no footer.
	Footer string `yaml:"footer"`
	// AppendMode keeps existing content and writes after it.
	AppendMode bool `yaml:"appendMode"`
	// Encoding must be UTF-8.
	Encoding string `yaml:"encoding"`
}

// FieldExtractor turns an item into its ordered field values.
type FieldExtractor[T any] func(item T) ([]string, error)

// FlatFileItemWriter writes one delimited line per item.
//
// Each batch is encoded into memory first and handed to the resource in a single
// write, so a failing item leaves nothing of its batch in the file. After every
// successful batch the byte position is recorded in the step's execution context;
// on restart a Truncatable resource is cut back to that position before writing
// resumes, and no second header is written.
type FlatFileItemWriter[T any] struct {
	name      string
	cfg       FlatFileWriterConfig
	resolver  *storage.Resolver
	extractor FieldExtractor[T]

	w      io.WriteCloser
	ec     model.ExecutionContext
	pos    int64
	broken bool
}

var _ port.ItemWriter[any] = (*FlatFileItemWriter[any])(nil)

// NewFlatFileItemWriter creates a writer from cfg.
func NewFlatFileItemWriter[T any](name string, cfg FlatFileWriterConfig, resolver *storage.Resolver, extractor FieldExtractor[T]) (*FlatFileItemWriter[T], error) {
	if cfg.Delimiter == "" {
		cfg.Delimiter = ","
	}
	if len([]rune(cfg.Delimiter)) != 1 {
		return nil, exception.NewBatchErrorf("writer", "%s: delimiter must be a single character, got %q", name, cfg.Delimiter)
	}
	if cfg.Encoding != "" && !strings.EqualFold(strings.ReplaceAll(cfg.Encoding, "-", ""), "UTF8") {
		return nil, exception.NewBatchErrorf("writer", "%s: unsupported encoding %q", name, cfg.Encoding)
	}
	if cfg.Resource == "" {
		return nil, exception.NewBatchErrorf("writer", "%s: resource must be configured", name)
	}
	if extractor == nil {
		return nil, exception.NewBatchErrorf("writer", "%s: a field extractor is required", name)
	}
	return &FlatFileItemWriter[T]{name: name, cfg: cfg, resolver: resolver, extractor: extractor}, nil
}

// NewFlatFileItemWriterFromProperties decodes properties and creates a writer.
func NewFlatFileItemWriterFromProperties[T any](name string, properties map[string]interface{}, resolver *storage.Resolver, extractor FieldExtractor[T]) (*FlatFileItemWriter[T], error) {
	var cfg FlatFileWriterConfig
	if err := configbinder.BindProperties(properties, &cfg); err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("failed to bind properties for %s", name), err, false, false)
	}
	return NewFlatFileItemWriter(name, cfg, resolver, extractor)
}

func (w *FlatFileItemWriter[T]) positionKey() string {
	return w.name + ".position"
}

// Open opens the resource and writes the header, unless a previous run of the same
// step already did.
func (w *FlatFileItemWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	res, err := w.resolver.Resolve(ctx, w.cfg.Resource)
	if err != nil {
		return exception.NewResourceError(w.cfg.Resource, err)
	}
	w.ec, w.broken = ec, false

	if pos, ok := ec.GetInt(w.positionKey()); ok {
		if tr, ok := res.(storage.Truncatable); ok {
			if err := tr.Truncate(ctx, int64(pos)); err != nil {
				return exception.NewResourceError(res.Location(), err)
			}
			if w.w, err = res.Create(ctx, true); err != nil {
				return exception.NewResourceError(res.Location(), err)
			}
			w.pos = int64(pos)
			logger.Infof("FlatFileItemWriter '%s': resuming %s at byte %d.", w.name, res.Location(), pos)
			return nil
		}
		logger.Warnf("FlatFileItemWriter '%s': %s cannot be truncated, rewriting from the start.", w.name, res.Location())
	}

	var base int64
	if w.cfg.AppendMode {
		if tr, ok := res.(storage.Truncatable); ok {
			if base, err = tr.Size(ctx); err != nil {
				return exception.NewResourceError(res.Location(), err)
			}
		}
	}
	if w.w, err = res.Create(ctx, w.cfg.AppendMode); err != nil {
		return exception.NewResourceError(res.Location(), err)
	}
	w.pos = base
	if base > 0 {
		terminated, err := endsWithNewline(ctx, res, base)
		if err != nil {
			return exception.NewResourceError(res.Location(), err)
		}
		// Existing content without a final newline would swallow our first line.
		if !terminated {
			if err := w.emit([]byte("\n")); err != nil {
				return exception.NewResourceError(res.Location(), err)
			}
		}
	}
	if w.cfg.Header != "" {
		if err := w.emit([]byte(w.cfg.Header + "\n")); err != nil {
			return exception.NewResourceError(res.Location(), err)
		}
	}
	w.ec.Put(w.positionKey(), w.pos)
	logger.Debugf("FlatFileItemWriter '%s': opened %s (append=%t).", w.name, res.Location(), w.cfg.AppendMode)
	return nil
}

// Write encodes items and appends them in one write.
func (w *FlatFileItemWriter[T]) Write(ctx context.Context, _ tx.Tx, items []T) error {
	if w.w == nil {
		return exception.NewWriteError(w.name, len(items), fmt.Errorf("writer is not open"))
	}
	if w.broken {
		return exception.NewWriteError(w.name, len(items), fmt.Errorf("a previous write failed partway, output is no longer consistent"))
	}
	if len(items) == 0 {
		return nil
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.Comma = []rune(w.cfg.Delimiter)[0]
	for i, item := range items {
		fields, err := w.extractor(item)
		if err != nil {
			return exception.NewWriteError(w.name, len(items), fmt.Errorf("item %d: %w", i, err))
		}
		if err := cw.Write(fields); err != nil {
			return exception.NewWriteError(w.name, len(items), fmt.Errorf("item %d: %w", i, err))
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return exception.NewWriteError(w.name, len(items), err)
	}

	if err := w.emit(buf.Bytes()); err != nil {
		return exception.NewWriteError(w.name, len(items), err)
	}
	w.ec.Put(w.positionKey(), w.pos)
	return nil
}

func (w *FlatFileItemWriter[T]) emit(b []byte) error {
	n, err := w.w.Write(b)
	w.pos += int64(n)
	if err != nil {
		if n > 0 {
			w.broken = true
		}
		return err
	}
	return nil
}

// endsWithNewline reports whether the size bytes of res end with '\n'.
func endsWithNewline(ctx context.Context, res storage.Resource, size int64) (bool, error) {
	rc, err := res.Open(ctx)
	if err != nil {
		return false, err
	}
	defer rc.Close()
	if seeker, ok := rc.(io.Seeker); ok {
		if _, err := seeker.Seek(size-1, io.SeekStart); err != nil {
			return false, err
		}
	} else if _, err := io.CopyN(io.Discard, rc, size-1); err != nil {
		return false, err
	}
	last := make([]byte, 1)
	if _, err := io.ReadFull(rc, last); err != nil {
		return false, err
	}
	return last[0] == '\n', nil
}

// Close writes the footer and closes the resource.
func (w *FlatFileItemWriter[T]) Close(ctx context.Context) error {
	if w.w == nil {
		return nil
	}
	var footerErr error
	if w.cfg.Footer != "" && !w.broken {
		if _, err := io.WriteString(w.w, w.cfg.Footer); err != nil {
			footerErr = exception.NewResourceError(w.cfg.Resource, err)
		}
	}
	err := w.w.Close()
	w.w = nil
	if footerErr != nil {
		return footerErr
	}
	return err
}
