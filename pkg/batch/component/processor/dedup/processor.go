package dedup

import (
	"context"
	"sync"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// KeyFunc derives the deduplication key of an item.
type KeyFunc[T any] func(item *T) string

// DuplicateSuppressingProcessor returns nil for items whose key was already seen, which
// the chunk step counts as filtered. With allowDuplicates it passes every item through
// without touching its pool.
//
// The pool is scoped to one step run: it is replaced when a new StepExecution is
// observed on the context, so relaunching the job does not inherit previous keys.
type DuplicateSuppressingProcessor[T any] struct {
	keyOf           KeyFunc[T]
	allowDuplicates bool

	mu          sync.Mutex
	pool        *KeyPool
	executionID string
}

var _ port.ItemProcessor[*struct{}, *struct{}] = (*DuplicateSuppressingProcessor[struct{}])(nil)

// NewDuplicateSuppressingProcessor creates the processor.
func NewDuplicateSuppressingProcessor[T any](keyOf KeyFunc[T], allowDuplicates bool) *DuplicateSuppressingProcessor[T] {
	return &DuplicateSuppressingProcessor[T]{
		keyOf:           keyOf,
		allowDuplicates: allowDuplicates,
		pool:            NewKeyPool(),
	}
}

// Process returns item, or nil when its key is a duplicate.
func (p *DuplicateSuppressingProcessor[T]) Process(ctx context.Context, item *T) (*T, error) {
	if p.allowDuplicates || item == nil {
		return item, nil
	}
	key := p.keyOf(item)
	if !p.poolFor(ctx).Add(key) {
		logger.Debugf("DuplicateSuppressingProcessor: filtered duplicate key %q.", key)
		return nil, nil
	}
	return item, nil
}

// Pool returns the pool of the current run.
func (p *DuplicateSuppressingProcessor[T]) Pool() *KeyPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool
}

func (p *DuplicateSuppressingProcessor[T]) poolFor(ctx context.Context) *KeyPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if se, ok := port.StepExecutionFromContext(ctx); ok && se.ID != p.executionID {
		if p.executionID != "" {
			p.pool = NewKeyPool()
		}
		p.executionID = se.ID
	}
	return p.pool
}

// BeforeStep starts a fresh pool. It lets the processor be registered as a
// port.StepExecutionListener.
func (p *DuplicateSuppressingProcessor[T]) BeforeStep(ctx context.Context, se *model.StepExecution) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pool = NewKeyPool()
	p.executionID = se.ID
}

// AfterStep releases the pool.
func (p *DuplicateSuppressingProcessor[T]) AfterStep(ctx context.Context, se *model.StepExecution) {
	p.mu.Lock()
	defer p.mu.Unlock()
	logger.Debugf("DuplicateSuppressingProcessor: step '%s' saw %d distinct keys.", se.StepName, p.pool.Len())
	p.pool = NewKeyPool()
	p.executionID = ""
}
