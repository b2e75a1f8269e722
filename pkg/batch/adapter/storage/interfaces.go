// Package storage resolves the resource locations used by file readers and writers.
// A location is a plain path, a file:// URI, or a gs://bucket/object URI.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrResourceNotFound is returned when a resource to be read does not exist.
var ErrResourceNotFound = errors.New("resource not found")

// Resource is a single readable and writable location.
type Resource interface {
	// Location returns the location the resource was resolved from.
	Location() string
	// Exists reports whether the resource currently exists.
	Exists(ctx context.Context) (bool, error)
	// Open opens the resource for reading.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Create opens the resource for writing. With appendMode, existing content is kept
	// and new content follows it; otherwise the resource is truncated.
	Create(ctx context.Context, appendMode bool) (io.WriteCloser, error)
}

// Provider resolves locations of a single URI scheme.
type Provider interface {
	// Scheme returns the URI scheme handled, e.g. "file" or "gs".
	Scheme() string
	// Resource returns the resource at location.
	Resource(ctx context.Context, location string) (Resource, error)
	// Close releases clients held by the provider.
	Close() error
}

// Truncatable is implemented by resources that can be cut back to a previous size.
// File writers use it to discard output written after the last commit when a step
// is restarted.
type Truncatable interface {
	// Size returns the current size in bytes, 0 if the resource does not exist.
	Size(ctx context.Context) (int64, error)
	// Truncate cuts the resource to size bytes.
	Truncate(ctx context.Context, size int64) error
}
