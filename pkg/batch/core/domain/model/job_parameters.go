package model

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

// JobParameters holds the parameters a job is launched with. Two launches with equal
// parameters address the same JobInstance.
type JobParameters struct {
	Params map[string]interface{}
}

// NewJobParameters creates an empty JobParameters.
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]interface{})}
}

// JobParametersFrom creates JobParameters holding a copy of m.
func JobParametersFrom(m map[string]interface{}) JobParameters {
	jp := NewJobParameters()
	for k, v := range m {
		jp.Params[k] = v
	}
	return jp
}

// Put sets a value. Parameters should only be mutated while they are being assembled
// before launch.
func (jp JobParameters) Put(key string, value interface{}) {
	jp.Params[key] = value
}

// Get retrieves the value for key, or nil.
func (jp JobParameters) Get(key string) interface{} {
	return jp.Params[key]
}

// Has reports whether key is present.
func (jp JobParameters) Has(key string) bool {
	_, ok := jp.Params[key]
	return ok
}

// GetString retrieves the value for key as a string.
func (jp JobParameters) GetString(key string) (string, bool) {
	val, ok := jp.Params[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetInt retrieves the value for key as an int. Numeric strings and JSON numbers are accepted.
func (jp JobParameters) GetInt(key string) (int, bool) {
	val, ok := jp.Params[key]
	if !ok {
		return 0, false
	}
	return toInt(val)
}

// GetInt64 retrieves the value for key as an int64.
func (jp JobParameters) GetInt64(key string) (int64, bool) {
	val, ok := jp.Params[key]
	if !ok {
		return 0, false
	}
	switch n := val.(type) {
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	i, ok := toInt(val)
	return int64(i), ok
}

// GetBool retrieves the value for key as a bool. "true"/"false" strings are accepted.
func (jp JobParameters) GetBool(key string) (bool, bool) {
	val, ok := jp.Params[key]
	if !ok {
		return false, false
	}
	switch b := val.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	default:
		return false, false
	}
}

// Copy returns an independent copy.
func (jp JobParameters) Copy() JobParameters {
	return JobParametersFrom(jp.Params)
}

// Merge returns a copy of jp overlaid with the values of other.
func (jp JobParameters) Merge(other JobParameters) JobParameters {
	out := jp.Copy()
	for k, v := range other.Params {
		out.Params[k] = v
	}
	return out
}

// Equal compares two JobParameters, treating numeric values of different types as equal.
func (jp JobParameters) Equal(other JobParameters) bool {
	if len(jp.Params) != len(other.Params) {
		return false
	}
	return jp.Contains(other)
}

// Contains reports whether jp holds every key of partial with an equal value.
func (jp JobParameters) Contains(partial JobParameters) bool {
	for key, want := range partial.Params {
		got, ok := jp.Params[key]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	af, aNum := toFloat64(a)
	bf, bNum := toFloat64(b)
	if aNum && bNum {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Hash returns a stable SHA-256 of the parameters. Keys are sorted and numbers are
// normalized so that an int and the float64 it decodes to hash the same.
func (jp JobParameters) Hash() (string, error) {
	keys := make([]string, 0, len(jp.Params))
	for k := range jp.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		v := jp.Params[k]
		if f, ok := toFloat64(v); ok {
			v = f
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return "", exception.NewBatchError("job_parameters", "failed to marshal parameter key", err, false, false)
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return "", exception.NewBatchError("job_parameters", fmt.Sprintf("failed to marshal parameter %q", k), err, false, false)
		}
		if i > 0 {
			sb.WriteString(",")
		}
		sb.Write(kb)
		sb.WriteString(":")
		sb.Write(vb)
	}
	sb.WriteString("}")

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:]), nil
}

var sensitiveKeyFragments = []string{"password", "secret", "token", "credential"}

// String returns a JSON rendering with sensitive values masked.
func (jp JobParameters) String() string {
	masked := make(map[string]interface{}, len(jp.Params))
	for k, v := range jp.Params {
		masked[k] = v
		lk := strings.ToLower(k)
		for _, frag := range sensitiveKeyFragments {
			if strings.Contains(lk, frag) {
				masked[k] = "********"
				break
			}
		}
	}
	data, err := json.Marshal(masked)
	if err != nil {
		return fmt.Sprintf("{[ERROR: failed to marshal parameters: %v]}", err)
	}
	return string(data)
}

// Value implements driver.Valuer.
func (jp JobParameters) Value() (driver.Value, error) {
	if jp.Params == nil {
		return "{}", nil
	}
	data, err := json.Marshal(jp.Params)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (jp *JobParameters) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		jp.Params = make(map[string]interface{})
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for JobParameters: %T", value)
	}
	jp.Params = make(map[string]interface{})
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, &jp.Params); err != nil {
		return fmt.Errorf("failed to unmarshal JobParameters JSON: %w", err)
	}
	return nil
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}
