package conversation

import (
	"context"
	"sync"
)

// Registry maps live call IDs to their conversation contexts. It is the only
// state shared across sessions; each session inserts its own context on start
// and removes it on end.
type Registry struct {
	mu       sync.Mutex
	contexts map[string]*Context
	wg       sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{contexts: make(map[string]*Context)}
}

// Insert registers a context under its call ID. It returns false when a
// context for that call is already live, in which case the new context is not
// registered.
func (r *Registry) Insert(c *Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.contexts[c.CallID]; exists {
		return false
	}
	r.contexts[c.CallID] = c
	r.wg.Add(1)
	return true
}

// Remove unregisters and returns the context for callID, or nil if none is
// live. Safe to call once per inserted context.
func (r *Registry) Remove(callID string) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contexts[callID]
	if !ok {
		return nil
	}
	delete(r.contexts, callID)
	r.wg.Done()
	return c
}

// Get returns the live context for callID, or nil.
func (r *Registry) Get(callID string) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contexts[callID]
}

// Count reports the number of live conversations.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

// Wait blocks until every live conversation has been removed, or ctx is
// done. It returns true when the registry drained.
func (r *Registry) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
