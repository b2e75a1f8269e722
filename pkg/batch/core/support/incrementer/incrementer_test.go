package incrementer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

func TestRunIDIncrementer(t *testing.T) {
	inc := NewRunIDIncrementer("")
	assert.Equal(t, "run.id", inc.Key())

	first := inc.GetNext(model.NewJobParameters())
	v, ok := first.GetInt("run.id")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	prev := model.NewJobParameters()
	prev.Put("run.id", "41")
	prev.Put("input", "test.csv")
	next := inc.GetNext(prev)
	v, _ = next.GetInt("run.id")
	assert.Equal(t, 42, v)
	assert.Equal(t, "test.csv", next.Get("input"))

	s, _ := prev.GetString("run.id")
	assert.Equal(t, "41", s, "input parameters are not mutated")
}

func TestTimestampIncrementer_Monotonic(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	inc := NewTimestampIncrementer("ts")
	inc.now = func() time.Time { return fixed }

	first := inc.GetNext(model.NewJobParameters())
	v1, ok := first.GetInt64("ts")
	assert.True(t, ok)
	assert.Equal(t, fixed.UnixMilli(), v1)

	second := inc.GetNext(first)
	v2, _ := second.GetInt64("ts")
	assert.Equal(t, v1+1, v2)
	assert.Equal(t, "ts", inc.Key())
}
