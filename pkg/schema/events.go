package schema

// Event type constants for the wait lifecycle audit log.
const (
	EventWaitParked   = "wait_parked"
	EventWaitReparked = "wait_reparked"
	EventWaitActioned = "wait_actioned"
	EventWaitExpired  = "wait_expired"
	EventWaitFaulted  = "wait_faulted"
)

// SuspensionStatus represents the host-side lifecycle of a parked wait.
type SuspensionStatus string

const (
	SuspensionParked   SuspensionStatus = "parked"
	SuspensionResolved SuspensionStatus = "resolved"
	SuspensionFaulted  SuspensionStatus = "faulted"
)
