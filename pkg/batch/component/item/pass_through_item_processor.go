package item

import (
	"context"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
)

// PassThroughItemProcessor returns every item unchanged.
type PassThroughItemProcessor[T any] struct{}

// NewPassThroughItemProcessor creates a [PassThroughItemProcessor].
func NewPassThroughItemProcessor[T any]() port.ItemProcessor[T, T] {
	return PassThroughItemProcessor[T]{}
}

// Process returns item as is.
func (PassThroughItemProcessor[T]) Process(ctx context.Context, item T) (T, error) {
	return item, nil
}

// FunctionItemProcessor adapts a function to [port.ItemProcessor].
type FunctionItemProcessor[I, O any] func(ctx context.Context, item I) (O, error)

// Process calls f.
func (f FunctionItemProcessor[I, O]) Process(ctx context.Context, item I) (O, error) {
	return f(ctx, item)
}
