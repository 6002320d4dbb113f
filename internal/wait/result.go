package wait

import (
	"encoding/json"

	"github.com/rendis/actionwait/pkg/schema"
)

// Outcome is how an invocation of a wait step ended. It is one of Pending,
// Accepted or Expired.
type Outcome interface {
	isOutcome()
	// Terminal reports whether the wait is over.
	Terminal() bool
}

// Pending means the wait is still parked.
type Pending struct{}

// Accepted means an offered action was clicked.
type Accepted struct {
	Actor  string `json:"actor"`
	Action string `json:"action"`
}

// Expired means the deadline passed without a matching click.
type Expired struct{}

func (Pending) isOutcome()  {}
func (Accepted) isOutcome() {}
func (Expired) isOutcome()  {}

func (Pending) Terminal() bool  { return false }
func (Accepted) Terminal() bool { return true }
func (Expired) Terminal() bool  { return true }

// Result is returned by every invocation of a wait step.
type Result struct {
	Outcome Outcome
	// Artifact is the rewritten artifact body on terminal outcomes.
	Artifact []schema.Block
	// Suspend is set while pending: the host must park the run with it.
	Suspend *schema.SuspendInstruction
}

func pending(ins schema.SuspendInstruction) Result {
	return Result{Outcome: Pending{}, Suspend: &ins}
}

// Action returns the clicked action, or "" unless accepted.
func (r Result) Action() string {
	if a, ok := r.Outcome.(Accepted); ok {
		return a.Action
	}
	return ""
}

// Actor returns the clicking actor, or "" unless accepted.
func (r Result) Actor() string {
	if a, ok := r.Outcome.(Accepted); ok {
		return a.Actor
	}
	return ""
}

// IsExpired is the three-valued flag workflows consume: nil while pending,
// false once accepted, true once expired.
func (r Result) IsExpired() *bool {
	switch r.Outcome.(type) {
	case Accepted:
		v := false
		return &v
	case Expired:
		v := true
		return &v
	default:
		return nil
	}
}

// resultJSON is the shape a wait step surfaces to the rest of the workflow.
type resultJSON struct {
	Action    string                     `json:"action"`
	Actor     string                     `json:"actor"`
	IsExpired *bool                      `json:"isExpired,omitempty"`
	Artifact  []schema.Block             `json:"artifact,omitempty"`
	Suspend   *schema.SuspendInstruction `json:"suspend,omitempty"`
}

// MarshalJSON encodes r as {"action", "actor", "isExpired"}; isExpired is
// omitted while pending.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Action:    r.Action(),
		Actor:     r.Actor(),
		IsExpired: r.IsExpired(),
		Artifact:  r.Artifact,
		Suspend:   r.Suspend,
	})
}
