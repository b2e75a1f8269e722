package reader

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldSet is one tokenized record with named fields.
type FieldSet struct {
	names  []string
	values []string
}

// NewFieldSet pairs names with values. Both slices must have the same length.
func NewFieldSet(names, values []string) FieldSet {
	return FieldSet{names: names, values: values}
}

// Names returns the field names.
func (f FieldSet) Names() []string { return f.names }

// Values returns the raw values in column order.
func (f FieldSet) Values() []string { return f.values }

// Get returns the trimmed value of the named field, or "" if the name is unknown.
func (f FieldSet) Get(name string) string {
	for i, n := range f.names {
		if n == name {
			return strings.TrimSpace(f.values[i])
		}
	}
	return ""
}

// GetInt parses the named field as an int.
func (f FieldSet) GetInt(name string) (int, error) {
	v := f.Get(name)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}
	return n, nil
}

// FieldSetMapper maps a FieldSet to an item.
type FieldSetMapper[T any] func(fs FieldSet) (T, error)
