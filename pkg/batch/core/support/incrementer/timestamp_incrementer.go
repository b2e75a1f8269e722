package incrementer

import (
	"fmt"
	"time"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// DefaultTimestampKey is the parameter managed by a TimestampIncrementer created with an empty name.
const DefaultTimestampKey = "timestamp"

// TimestampIncrementer sets its key to the current Unix time in milliseconds.
type TimestampIncrementer struct {
	name string
	now  func() time.Time
}

// NewTimestampIncrementer creates a TimestampIncrementer managing the parameter name.
func NewTimestampIncrementer(name string) *TimestampIncrementer {
	if name == "" {
		name = DefaultTimestampKey
	}
	return &TimestampIncrementer{name: name, now: time.Now}
}

// Key returns the managed parameter name.
func (i *TimestampIncrementer) Key() string {
	return i.name
}

// GetNext returns a copy of params with the key set to the current time.
// Successive calls within the same millisecond still yield distinct values.
func (i *TimestampIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := params.Copy()

	ts := i.now().UnixMilli()
	if prev, ok := params.GetInt64(i.name); ok && ts <= prev {
		ts = prev + 1
	}
	next.Put(i.name, ts)
	logger.Debugf("JobParametersIncrementer '%s': setting to %d.", i.name, ts)
	return next
}

func (i *TimestampIncrementer) String() string {
	return fmt.Sprintf("TimestampIncrementer[name=%s]", i.name)
}

var _ port.JobParametersIncrementer = (*TimestampIncrementer)(nil)
