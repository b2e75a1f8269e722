package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// ExecutionContext is a key-value store for state that must survive a restart,
// such as a reader's position. It is stored as JSON.
type ExecutionContext map[string]interface{}

// NewExecutionContext creates an empty ExecutionContext.
func NewExecutionContext() ExecutionContext {
	return make(ExecutionContext)
}

// Put sets a value.
func (ec ExecutionContext) Put(key string, value interface{}) {
	ec[key] = value
}

// Get retrieves a value.
func (ec ExecutionContext) Get(key string) (interface{}, bool) {
	v, ok := ec[key]
	return v, ok
}

// GetString retrieves a value as a string.
func (ec ExecutionContext) GetString(key string) (string, bool) {
	v, ok := ec[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt retrieves a value as an int. Values decoded from JSON arrive as float64 and are converted.
func (ec ExecutionContext) GetInt(key string) (int, bool) {
	v, ok := ec[key]
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// Copy returns a shallow copy.
func (ec ExecutionContext) Copy() ExecutionContext {
	out := make(ExecutionContext, len(ec))
	for k, v := range ec {
		out[k] = v
	}
	return out
}

// Restore replaces the contents of ec with those of snapshot, keeping the map identity
// so components holding ec observe the change.
func (ec ExecutionContext) Restore(snapshot ExecutionContext) {
	for k := range ec {
		delete(ec, k)
	}
	for k, v := range snapshot {
		ec[k] = v
	}
}

// Value implements driver.Valuer, encoding the context as a JSON string.
func (ec ExecutionContext) Value() (driver.Value, error) {
	if ec == nil {
		return "{}", nil
	}
	data, err := json.Marshal(ec)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner, decoding a JSON string or byte slice.
func (ec *ExecutionContext) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*ec = NewExecutionContext()
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for ExecutionContext: %T", value)
	}
	if len(b) == 0 {
		*ec = NewExecutionContext()
		return nil
	}
	m := NewExecutionContext()
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("failed to unmarshal ExecutionContext JSON: %w", err)
	}
	*ec = m
	return nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
