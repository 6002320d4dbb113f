package schema

import "time"

// WaitRecord is the durable metadata of one parked wait.
// It is written once when the wait begins and never mutated; re-parking
// re-issues the same values.
type WaitRecord struct {
	Path          string    `json:"path"`
	CorrelationID string    `json:"correlation_id"`
	Deadline      time.Time `json:"deadline"`
}

// Expired reports whether the deadline has passed at now.
func (r WaitRecord) Expired(now time.Time) bool {
	return !now.Before(r.Deadline)
}

// SuspendInstruction asks the host to park the run and re-invoke the step at
// Record.Path either at Record.Deadline or when Record.CorrelationID is presented.
type SuspendInstruction struct {
	Record WaitRecord `json:"record"`
}
