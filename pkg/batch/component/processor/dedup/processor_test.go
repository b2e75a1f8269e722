package dedup_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/chunkbatch/pkg/batch/component/processor/dedup"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

type person struct {
	Name string
	Age  int
}

func byName(p *person) string { return p.Name }

func TestKeyPool_AddIsCheckAndInsert(t *testing.T) {
	pool := dedup.NewKeyPool()
	assert.True(t, pool.Add("alice"))
	assert.False(t, pool.Add("alice"))
	assert.True(t, pool.Contains("alice"))
	assert.False(t, pool.Contains("bob"))
	assert.Equal(t, 1, pool.Len())
}

func TestKeyPool_ConcurrentAddAdmitsOneWinnerPerKey(t *testing.T) {
	pool := dedup.NewKeyPool()
	var winners atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if pool.Add(fmt.Sprintf("key-%d", i%10)) {
					winners.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(10), winners.Load())
	assert.Equal(t, 10, pool.Len())
}

func TestDuplicateSuppressingProcessor_FiltersRepeatedKeys(t *testing.T) {
	ctx := context.Background()
	p := dedup.NewDuplicateSuppressingProcessor(byName, false)

	names := []string{"kim", "lee", "kim", "park", "lee"}
	var survivors []string
	for i, n := range names {
		out, err := p.Process(ctx, &person{Name: n, Age: i})
		require.NoError(t, err)
		if out != nil {
			survivors = append(survivors, out.Name)
		}
	}
	assert.Equal(t, []string{"kim", "lee", "park"}, survivors)
}

func TestDuplicateSuppressingProcessor_AllowDuplicatesPassesThrough(t *testing.T) {
	ctx := context.Background()
	p := dedup.NewDuplicateSuppressingProcessor(byName, true)

	for i := 0; i < 5; i++ {
		out, err := p.Process(ctx, &person{Name: "same"})
		require.NoError(t, err)
		assert.NotNil(t, out)
	}
	assert.Zero(t, p.Pool().Len())
}

func TestDuplicateSuppressingProcessor_PoolScopedToStepExecution(t *testing.T) {
	p := dedup.NewDuplicateSuppressingProcessor(byName, false)

	first := port.WithStepExecution(context.Background(), model.NewStepExecution("se-1", nil, "savePersonStep"))
	out, _ := p.Process(first, &person{Name: "kim"})
	assert.NotNil(t, out)
	out, _ = p.Process(first, &person{Name: "kim"})
	assert.Nil(t, out)

	second := port.WithStepExecution(context.Background(), model.NewStepExecution("se-2", nil, "savePersonStep"))
	out, _ = p.Process(second, &person{Name: "kim"})
	assert.NotNil(t, out, "a new step run starts with an empty pool")
}

func TestDuplicateSuppressingProcessor_ConcurrentChunks(t *testing.T) {
	ctx := context.Background()
	p := dedup.NewDuplicateSuppressingProcessor(byName, false)

	var kept atomic.Int64
	var wg sync.WaitGroup
	for chunk := 0; chunk < 10; chunk++ {
		wg.Add(1)
		go func(chunk int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				out, err := p.Process(ctx, &person{Name: fmt.Sprintf("name-%d", (chunk*10+i)%3)})
				if err == nil && out != nil {
					kept.Add(1)
				}
			}
		}(chunk)
	}
	wg.Wait()
	assert.Equal(t, int64(3), kept.Load())
}
