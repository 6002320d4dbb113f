package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rendis/actionwait/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Wait records (run-scoped key/value)
	PutWait(ctx context.Context, runID, key string, rec *schema.WaitRecord) error
	GetWait(ctx context.Context, runID, key string) (*schema.WaitRecord, error)
	DeleteRun(ctx context.Context, runID string) error

	// Suspensions
	UpsertSuspension(ctx context.Context, s *Suspension) error
	GetSuspension(ctx context.Context, correlationID string) (*Suspension, error)
	ResolveSuspension(ctx context.Context, correlationID string, status schema.SuspensionStatus, outcome json.RawMessage) error
	ListSuspensions(ctx context.Context, filter SuspensionFilter) ([]*Suspension, error)

	// Event log (append-only)
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, runID string, since int64) ([]*Event, error)

	// Maintenance
	Migrate(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Suspension is the host's view of a parked wait.
type Suspension struct {
	CorrelationID string                  `json:"correlation_id"`
	RunID         string                  `json:"run_id"`
	Path          string                  `json:"path"`
	Deadline      time.Time               `json:"deadline"`
	Status        schema.SuspensionStatus `json:"status"`
	Outcome       json.RawMessage         `json:"outcome,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	ResolvedAt    *time.Time              `json:"resolved_at,omitempty"`
}

// Event is an immutable entry in the wait lifecycle log.
type Event struct {
	ID        int64           `json:"id"`
	RunID     string          `json:"run_id"`
	Path      string          `json:"path,omitempty"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}

// SuspensionFilter specifies criteria for listing suspensions.
type SuspensionFilter struct {
	RunID     string                  `json:"run_id,omitempty"`
	Status    schema.SuspensionStatus `json:"status,omitempty"`
	DueBefore *time.Time              `json:"due_before,omitempty"`
	Limit     int                     `json:"limit,omitempty"`
}
