package store

import (
	"context"

	"github.com/rendis/actionwait/pkg/schema"
)

// WaitStore is the part of Store that holds run-scoped wait records.
type WaitStore interface {
	PutWait(ctx context.Context, runID, key string, rec *schema.WaitRecord) error
	GetWait(ctx context.Context, runID, key string) (*schema.WaitRecord, error)
}

// RunScope binds a WaitStore to one run so callers only deal in keys.
type RunScope struct {
	store WaitStore
	runID string
}

// ForRun returns the key/value view of s for runID.
func ForRun(s WaitStore, runID string) *RunScope {
	return &RunScope{store: s, runID: runID}
}

// RunID returns the run this scope is bound to.
func (r *RunScope) RunID() string { return r.runID }

// Get returns the record stored under key, or a NOT_FOUND error.
func (r *RunScope) Get(ctx context.Context, key string) (*schema.WaitRecord, error) {
	return r.store.GetWait(ctx, r.runID, key)
}

// Put stores rec under key, replacing any previous value.
func (r *RunScope) Put(ctx context.Context, key string, rec *schema.WaitRecord) error {
	return r.store.PutWait(ctx, r.runID, key, rec)
}
