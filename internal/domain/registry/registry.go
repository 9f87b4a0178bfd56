// Package registry tracks which participants may click in this process.
package registry

import (
	"context"
	"sync"
	"sync/atomic"
)

// Registry records registered participant ids.
type Registry interface {
	// Register adds id. Returns true if id was already registered.
	Register(ctx context.Context, id string) bool

	// IsRegistered reports whether id has been registered.
	IsRegistered(ctx context.Context, id string) bool

	// Unregister removes id.
	Unregister(ctx context.Context, id string)

	Size() int64
}

// inMemoryRegistry keeps ids for the lifetime of the process.
type inMemoryRegistry struct {
	mu       sync.RWMutex
	ids      map[string]struct{}
	capacity int
	size     atomic.Int64
}

// NewInMemoryRegistry creates an empty registry.
func NewInMemoryRegistry(opts ...Option) Registry {
	r := &inMemoryRegistry{capacity: 1024}
	for _, opt := range opts {
		opt(r)
	}
	r.ids = make(map[string]struct{}, r.capacity)
	return r
}

func (r *inMemoryRegistry) Register(_ context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[id]; ok {
		return true
	}
	r.ids[id] = struct{}{}
	r.size.Add(1)
	return false
}

func (r *inMemoryRegistry) IsRegistered(_ context.Context, id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

func (r *inMemoryRegistry) Unregister(_ context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		delete(r.ids, id)
		r.size.Add(-1)
	}
}

// Size returns the number of registered ids.
func (r *inMemoryRegistry) Size() int64 {
	return r.size.Load()
}
