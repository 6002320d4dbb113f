package artifact

import "sync"

// Registry holds the in-process artifacts of live waits by correlation id.
// Entries are dropped once their wait resolves; the final body then lives in
// the stored outcome.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*MemoryHandle
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*MemoryHandle)}
}

// Put stores h under correlationID.
func (r *Registry) Put(correlationID string, h *MemoryHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[correlationID] = h
}

// Get returns the artifact of a live wait.
func (r *Registry) Get(correlationID string) (*MemoryHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[correlationID]
	return h, ok
}

// Evict drops the entry for correlationID, if any.
func (r *Registry) Evict(correlationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, correlationID)
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
