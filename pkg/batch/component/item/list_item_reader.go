// Package item provides general-purpose readers, processors and writers.
package item

import (
	"context"
	"sync"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// ListItemReader is a [port.ItemReader] over an in-memory slice.
type ListItemReader[T any] struct {
	mu    sync.Mutex
	items []T
	pos   int
}

var (
	_ port.ItemReader[any] = (*ListItemReader[any])(nil)
	_ port.Skipper         = (*ListItemReader[any])(nil)
)

// NewListItemReader creates a reader returning items in order. The slice is copied.
func NewListItemReader[T any](items []T) *ListItemReader[T] {
	cp := make([]T, len(items))
	copy(cp, items)
	return &ListItemReader[T]{items: cp}
}

// Open rewinds the reader.
func (r *ListItemReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos = 0
	return nil
}

// Read returns the next item, or [port.ErrNoMoreItems].
func (r *ListItemReader[T]) Read(ctx context.Context) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if r.pos >= len(r.items) {
		return zero, port.ErrNoMoreItems
	}
	item := r.items[r.pos]
	r.pos++
	return item, nil
}

// Skip advances past n items.
func (r *ListItemReader[T]) Skip(ctx context.Context, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos = min(r.pos+n, len(r.items))
	return nil
}

// Close is a no-op.
func (r *ListItemReader[T]) Close(ctx context.Context) error {
	return nil
}
