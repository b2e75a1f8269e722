package exception

import (
	"errors"
	"fmt"
)

// ResourceError reports that a reader's or writer's backing resource could not be opened
// or became unavailable.
type ResourceError struct {
	// Resource identifies the resource (path or URI).
	Resource string
	Err      error
}

// NewResourceError creates a ResourceError for the given resource.
func NewResourceError(resource string, err error) *ResourceError {
	return &ResourceError{Resource: resource, Err: err}
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %q unavailable: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// ParseError reports that a record could not be mapped to an item.
type ParseError struct {
	// Resource identifies where the record came from.
	Resource string
	// Line is the 1-based line number of the offending record, 0 if unknown.
	Line int
	// Input is the raw record text.
	Input string
	Err   error
}

// NewParseError creates a ParseError.
func NewParseError(resource string, line int, input string, err error) *ParseError {
	return &ParseError{Resource: resource, Line: line, Input: input, Err: err}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing error at line %d in resource %q, input: [%s]: %v", e.Line, e.Resource, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// WriteError reports that a sink rejected a batch.
type WriteError struct {
	// Writer names the sink.
	Writer string
	// Items is the size of the rejected batch.
	Items int
	Err   error
}

// NewWriteError creates a WriteError.
func NewWriteError(writer string, items int, err error) *WriteError {
	return &WriteError{Writer: writer, Items: items, Err: err}
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writer %q failed to write %d items: %v", e.Writer, e.Items, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsResourceError reports whether err wraps a *ResourceError.
func IsResourceError(err error) bool {
	var re *ResourceError
	return errors.As(err, &re)
}

// IsParseError reports whether err wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsWriteError reports whether err wraps a *WriteError.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}
