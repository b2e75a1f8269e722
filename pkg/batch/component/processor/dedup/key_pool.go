// Package dedup provides a processor that filters items whose derived key was already
// seen during the current step run.
package dedup

import (
	"sync"
	"sync/atomic"
)

// KeyPool is the set of keys seen during one step run. It is append-only and safe for
// concurrent use.
type KeyPool struct {
	keys sync.Map
	size atomic.Int64
}

// NewKeyPool creates an empty KeyPool.
func NewKeyPool() *KeyPool {
	return &KeyPool{}
}

// Add inserts key and reports whether it was absent. The check and the insert are a
// single atomic operation, so exactly one of several concurrent callers with the same
// key gets true.
func (p *KeyPool) Add(key string) bool {
	_, loaded := p.keys.LoadOrStore(key, struct{}{})
	if !loaded {
		p.size.Add(1)
	}
	return !loaded
}

// Contains reports whether key has been added.
func (p *KeyPool) Contains(key string) bool {
	_, ok := p.keys.Load(key)
	return ok
}

// Len returns the number of distinct keys.
func (p *KeyPool) Len() int {
	return int(p.size.Load())
}
