package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rendis/actionwait/pkg/schema"
)

// AppendEvent appends an event with a monotonically increasing per-run sequence.
func (s *LibSQLStore) AppendEvent(ctx context.Context, event *Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event tx: %w", err)
	}
	defer tx.Rollback()

	// Force write-lock acquisition so concurrent appenders cannot interleave
	// the sequence read and the insert. In WAL mode BeginTx alone is deferred.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_version WHERE version = -1`); err != nil {
		return fmt.Errorf("cleanup write lock: %w", err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE run_id = ?`, event.RunID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (run_id, path, event_type, payload, timestamp, sequence) VALUES (?, ?, ?, ?, ?, ?)`,
		event.RunID, nullStr(event.Path), event.Type, nullRaw(event.Payload), event.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		event.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// EventReader is the read side of the event log.
type EventReader interface {
	GetEvents(ctx context.Context, runID string, since int64) ([]*Event, error)
}

// WaitHistory is the lifecycle of one wait path reconstructed from the log.
type WaitHistory struct {
	Path     string     `json:"path"`
	State    string     `json:"state"` // pending, actioned, expired, faulted
	Reparks  int        `json:"reparks"`
	ParkedAt *time.Time `json:"parked_at,omitempty"`
	EndedAt  *time.Time `json:"ended_at,omitempty"`
}

// Wait history states.
const (
	HistoryPending  = "pending"
	HistoryActioned = "actioned"
	HistoryExpired  = "expired"
	HistoryFaulted  = "faulted"
)

// ReplayWaits replays a run's events and returns the per-path wait histories.
// Returns an error if sequence gaps are detected.
func ReplayWaits(ctx context.Context, r EventReader, runID string) (map[string]*WaitHistory, error) {
	events, err := r.GetEvents(ctx, runID, 0)
	if err != nil {
		return nil, fmt.Errorf("get events for replay: %w", err)
	}

	for i, e := range events {
		expected := int64(i + 1)
		if e.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in run %s: expected %d, got %d", runID, expected, e.Sequence)
		}
	}

	waits := make(map[string]*WaitHistory)
	for _, e := range events {
		if e.Path == "" {
			continue
		}
		w, ok := waits[e.Path]
		if !ok {
			w = &WaitHistory{Path: e.Path, State: HistoryPending}
			waits[e.Path] = w
		}
		ts := e.Timestamp

		switch e.Type {
		case schema.EventWaitParked:
			w.State = HistoryPending
			w.ParkedAt = &ts
			w.EndedAt = nil
		case schema.EventWaitReparked:
			w.Reparks++
		case schema.EventWaitActioned:
			w.State = HistoryActioned
			w.EndedAt = &ts
		case schema.EventWaitExpired:
			w.State = HistoryExpired
			w.EndedAt = &ts
		case schema.EventWaitFaulted:
			w.State = HistoryFaulted
			w.EndedAt = &ts
		}
	}
	return waits, nil
}
