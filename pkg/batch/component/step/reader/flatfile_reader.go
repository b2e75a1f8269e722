// Package reader provides item readers for delimited text files.
package reader

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// FlatFileReaderConfig configures a FlatFileItemReader.
type FlatFileReaderConfig struct {
	// Resource is the location of the file (path, file:// or gs:// URI).
	Resource string `yaml:"resource"`
	// Delimiter separates fields. Defaults to ",".
	Delimiter string `yaml:"delimiter"`
	// Names are the field names, in column order.
	Names []string `yaml:"names"`
	// LinesToSkip is the number of leading lines (headers) to skip.
	LinesToSkip int `yaml:"linesToSkip"`
	// Encoding must be UTF-8.
	Encoding string `yaml:"encoding"`
}

// DefaultFlatFileReaderConfig skips one header line and splits on commas.
func DefaultFlatFileReaderConfig() FlatFileReaderConfig {
	return FlatFileReaderConfig{Delimiter: ",", LinesToSkip: 1, Encoding: "UTF-8"}
}

// FlatFileItemReader reads one item per line from a delimited text resource.
// A line whose field count differs from Names, or that the mapper rejects, fails
// with an exception.ParseError. A resource that cannot be opened fails Open with an
// exception.ResourceError.
type FlatFileItemReader[T any] struct {
	name     string
	cfg      FlatFileReaderConfig
	resolver *storage.Resolver
	mapper   FieldSetMapper[T]

	rc     io.ReadCloser
	csv    *csv.Reader
	source string
	line   int
}

var (
	_ port.ItemReader[any] = (*FlatFileItemReader[any])(nil)
	_ port.Skipper         = (*FlatFileItemReader[any])(nil)
)

// NewFlatFileItemReader creates a reader from cfg.
func NewFlatFileItemReader[T any](name string, cfg FlatFileReaderConfig, resolver *storage.Resolver, mapper FieldSetMapper[T]) (*FlatFileItemReader[T], error) {
	if cfg.Delimiter == "" {
		cfg.Delimiter = ","
	}
	if len([]rune(cfg.Delimiter)) != 1 {
		return nil, exception.NewBatchErrorf("reader", "%s: delimiter must be a single character, got %q", name, cfg.Delimiter)
	}
	if cfg.Encoding != "" && !strings.EqualFold(strings.ReplaceAll(cfg.Encoding, "-", ""), "UTF8") {
		return nil, exception.NewBatchErrorf("reader", "%s: unsupported encoding %q", name, cfg.Encoding)
	}
	if len(cfg.Names) == 0 {
		return nil, exception.NewBatchErrorf("reader", "%s: field names must be configured", name)
	}
	if cfg.Resource == "" {
		return nil, exception.NewBatchErrorf("reader", "%s: resource must be configured", name)
	}
	if mapper == nil {
		return nil, exception.NewBatchErrorf("reader", "%s: a field set mapper is required", name)
	}
	return &FlatFileItemReader[T]{name: name, cfg: cfg, resolver: resolver, mapper: mapper}, nil
}

// NewFlatFileItemReaderFromProperties decodes properties over the defaults and creates a reader.
func NewFlatFileItemReaderFromProperties[T any](name string, properties map[string]interface{}, resolver *storage.Resolver, mapper FieldSetMapper[T]) (*FlatFileItemReader[T], error) {
	cfg := DefaultFlatFileReaderConfig()
	if err := configbinder.BindProperties(properties, &cfg); err != nil {
		return nil, exception.NewBatchError("reader", fmt.Sprintf("failed to bind properties for %s", name), err, false, false)
	}
	return NewFlatFileItemReader(name, cfg, resolver, mapper)
}

// Open opens the resource and skips the header lines.
func (r *FlatFileItemReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	res, err := r.resolver.Resolve(ctx, r.cfg.Resource)
	if err != nil {
		return exception.NewResourceError(r.cfg.Resource, err)
	}
	rc, err := res.Open(ctx)
	if err != nil {
		return exception.NewResourceError(r.cfg.Resource, err)
	}

	br := bufio.NewReader(rc)
	// Drop a UTF-8 byte order mark.
	if bom, _ := br.Peek(3); len(bom) == 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	cr := csv.NewReader(br)
	cr.Comma = []rune(r.cfg.Delimiter)[0]
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	r.rc, r.csv, r.source, r.line = rc, cr, res.Location(), 0

	for i := 0; i < r.cfg.LinesToSkip; i++ {
		if _, err := r.next(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
	}
	logger.Debugf("FlatFileItemReader '%s': opened %s.", r.name, r.source)
	return nil
}

// Read returns the next mapped item, or port.ErrNoMoreItems at end of file.
func (r *FlatFileItemReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	record, err := r.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return zero, port.ErrNoMoreItems
		}
		return zero, err
	}
	input := strings.Join(record, r.cfg.Delimiter)
	if len(record) != len(r.cfg.Names) {
		return zero, exception.NewParseError(r.source, r.line, input,
			fmt.Errorf("expected %d fields, got %d", len(r.cfg.Names), len(record)))
	}
	item, err := r.mapper(NewFieldSet(r.cfg.Names, record))
	if err != nil {
		return zero, exception.NewParseError(r.source, r.line, input, err)
	}
	return item, nil
}

// Skip discards n records without mapping them.
func (r *FlatFileItemReader[T]) Skip(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if _, err := r.next(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (r *FlatFileItemReader[T]) next() ([]string, error) {
	if r.csv == nil {
		return nil, exception.NewBatchErrorf("reader", "%s: read before open", r.name)
	}
	record, err := r.csv.Read()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			r.line = pe.Line
			return nil, exception.NewParseError(r.source, pe.Line, "", pe.Err)
		}
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, exception.NewResourceError(r.source, err)
	}
	r.line, _ = r.csv.FieldPos(0)
	return record, nil
}

// Close closes the resource.
func (r *FlatFileItemReader[T]) Close(ctx context.Context) error {
	if r.rc == nil {
		return nil
	}
	err := r.rc.Close()
	r.rc, r.csv = nil, nil
	return err
}
