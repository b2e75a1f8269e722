package reader

import (
	"context"
	"database/sql"
	"fmt"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// RowMapper maps the current row of rows to an item.
type RowMapper[T any] func(rows *sql.Rows) (T, error)

// SQLCursorItemReader streams the result of one query, one row per item.
//
// The query runs once in Open and rows are consumed as they are read. On restart
// the chunk step skips the already committed rows through Skip, so the query must
// return rows in a stable order (an ORDER BY on a unique key).
type SQLCursorItemReader[T any] struct {
	db     *sql.DB
	name   string
	query  string
	args   []any
	mapper RowMapper[T]

	rows *sql.Rows
	row  int
}

var (
	_ port.ItemReader[any] = (*SQLCursorItemReader[any])(nil)
	_ port.Skipper         = (*SQLCursorItemReader[any])(nil)
)

// NewSQLCursorItemReader creates a reader for query.
//
// Parameters:
//
//	db: The database to query.
//	name: The reader name, used in logs and errors.
//	query: The SELECT statement.
//	args: The positional arguments of query.
//	mapper: Maps a row to an item.
func NewSQLCursorItemReader[T any](db *sql.DB, name, query string, args []any, mapper RowMapper[T]) (*SQLCursorItemReader[T], error) {
	if db == nil {
		return nil, exception.NewBatchErrorf("reader", "%s: a database is required", name)
	}
	if query == "" {
		return nil, exception.NewBatchErrorf("reader", "%s: query must be configured", name)
	}
	if mapper == nil {
		return nil, exception.NewBatchErrorf("reader", "%s: a row mapper is required", name)
	}
	return &SQLCursorItemReader[T]{db: db, name: name, query: query, args: args, mapper: mapper}, nil
}

// Open executes the query.
func (r *SQLCursorItemReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	rows, err := r.db.QueryContext(ctx, r.query, r.args...)
	if err != nil {
		return exception.NewResourceError(r.name, err)
	}
	r.rows = rows
	r.row = 0
	logger.Debugf("SQLCursorItemReader '%s': query opened.", r.name)
	return nil
}

// Read maps the next row, or returns port.ErrNoMoreItems after the last one.
func (r *SQLCursorItemReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if r.rows == nil {
		return zero, exception.NewBatchErrorf("reader", "%s: reader is not open", r.name)
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return zero, exception.NewResourceError(r.name, err)
		}
		return zero, port.ErrNoMoreItems
	}
	r.row++
	item, err := r.mapper(r.rows)
	if err != nil {
		return zero, exception.NewParseError(r.name, r.row, fmt.Sprintf("row %d", r.row), err)
	}
	return item, nil
}

// Skip advances the cursor past n rows without mapping them.
func (r *SQLCursorItemReader[T]) Skip(ctx context.Context, n int) error {
	if r.rows == nil {
		return exception.NewBatchErrorf("reader", "%s: reader is not open", r.name)
	}
	for i := 0; i < n; i++ {
		if !r.rows.Next() {
			return r.rows.Err()
		}
		r.row++
	}
	return nil
}

// Close closes the result set.
func (r *SQLCursorItemReader[T]) Close(ctx context.Context) error {
	if r.rows == nil {
		return nil
	}
	err := r.rows.Close()
	r.rows = nil
	if err != nil {
		return exception.NewResourceError(r.name, err)
	}
	return nil
}
