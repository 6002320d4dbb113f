// Package streaming fans wait lifecycle events out to live subscribers.
package streaming

import (
	"context"
	"time"
)

// WaitEvent is a lifecycle change of one wait, as it happens.
type WaitEvent struct {
	RunID         string    `json:"run_id"`
	Path          string    `json:"path"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	EventType     string    `json:"event_type"`
	Payload       any       `json:"payload,omitempty"`
	At            time.Time `json:"at"`
}

// EventFilter specifies which events a subscriber wants to receive.
// Zero fields match everything.
type EventFilter struct {
	RunID      string   `json:"run_id,omitempty"`
	Path       string   `json:"path,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for wait lifecycle events.
type EventHub interface {
	Publish(ctx context.Context, event WaitEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan WaitEvent, func(), error)
}
