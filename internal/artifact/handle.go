package artifact

import (
	"context"
	"sync"

	"github.com/rendis/actionwait/pkg/schema"
)

// Handle addresses one external artifact (e.g. a posted chat message).
// Fetching and writing bodies is the messaging integration's job.
type Handle interface {
	Fetch(ctx context.Context) ([]schema.Block, error)
	Update(ctx context.Context, body []schema.Block) error
}

// MemoryHandle is an in-process Handle. It records every write.
type MemoryHandle struct {
	mu      sync.Mutex
	body    []schema.Block
	updates int
}

// NewMemoryHandle creates a handle holding body.
func NewMemoryHandle(body []schema.Block) *MemoryHandle {
	return &MemoryHandle{body: body}
}

func (h *MemoryHandle) Fetch(ctx context.Context) ([]schema.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]schema.Block, len(h.body))
	copy(out, h.body)
	return out, nil
}

func (h *MemoryHandle) Update(ctx context.Context, body []schema.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.body = body
	h.updates++
	return nil
}

// Body returns the current body.
func (h *MemoryHandle) Body() []schema.Block {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.body
}

// Updates returns how many times the body was written.
func (h *MemoryHandle) Updates() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.updates
}

// Resolve fetches the artifact, applies t, and writes the result back.
// It returns the body that was written.
func Resolve(ctx context.Context, h Handle, t Terminal) ([]schema.Block, error) {
	body, err := h.Fetch(ctx)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeArtifact, "fetch artifact: %s", err.Error()).WithCause(err)
	}
	updated := ApplyTerminal(body, t)
	if err := h.Update(ctx, updated); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeArtifact, "update artifact: %s", err.Error()).WithCause(err)
	}
	return updated, nil
}
