// Package wait parks a workflow step until a human acts on an external
// artifact, and decides on every re-entry whether the wake-up belongs to it.
package wait

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rendis/actionwait/internal/logging"
	"github.com/rendis/actionwait/pkg/schema"
)

// RecordStore is the durable key/value store of one run.
// Get returns a NOT_FOUND OpcodeError when key has no record.
type RecordStore interface {
	Get(ctx context.Context, key string) (*schema.WaitRecord, error)
	Put(ctx context.Context, key string, rec *schema.WaitRecord) error
}

// SuspendControl is the engine's side of parking a run.
type SuspendControl interface {
	// MintCorrelationID returns a fresh, single-use correlation token.
	MintCorrelationID() string
	// Suspend parks the run until ins.Record.Deadline or until the token is
	// presented back, then re-invokes the step at ins.Record.Path.
	Suspend(ctx context.Context, ins schema.SuspendInstruction) error
}

// WaitKey is the store key of the record for path. Every visit to the same
// path maps to the same key.
func WaitKey(path string) string {
	return "wait:" + path
}

// Coordinator begins waits.
type Coordinator struct {
	store  RecordStore
	engine SuspendControl
	logger *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(store RecordStore, engine SuspendControl, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: store, engine: engine, logger: logging.Default(logger)}
}

// BeginWait persists a new record for path and asks the engine to park the
// run until deadline. path must be unique among the run's live waits; that
// is the caller's responsibility and is not checked here.
// The artifact must already have been sent; it is not touched.
func (c *Coordinator) BeginWait(ctx context.Context, path string, deadline time.Time) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, schema.NewError(schema.ErrCodeValidation, "wait path is required")
	}

	rec := schema.WaitRecord{
		Path:          path,
		CorrelationID: c.engine.MintCorrelationID(),
		Deadline:      deadline.UTC(),
	}
	ctx = logging.WithCorrelationID(logging.WithPath(ctx, path), rec.CorrelationID)

	if err := c.store.Put(ctx, WaitKey(path), &rec); err != nil {
		return Result{}, schema.NewErrorf(schema.ErrCodeStore, "persist wait record: %s", err.Error()).
			WithPath(path).WithCause(err)
	}

	ins := schema.SuspendInstruction{Record: rec}
	if err := c.engine.Suspend(ctx, ins); err != nil {
		return Result{}, schema.NewErrorf(schema.ErrCodeSuspend, "suspend: %s", err.Error()).
			WithPath(path).WithCause(err)
	}

	c.logger.InfoContext(ctx, "wait parked", slog.Time("deadline", rec.Deadline))
	return pending(ins), nil
}
