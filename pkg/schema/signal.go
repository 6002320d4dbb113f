package schema

// ResumeSignal is the untrusted, externally supplied payload the host passes to a
// re-entered wait step. Every field is optional; a nil field was absent.
type ResumeSignal struct {
	Path          *string `json:"path,omitempty"`
	ActionClicked *string `json:"actionClicked,omitempty"`
	ActorName     *string `json:"actorName,omitempty"`
}

// IsClick reports whether the signal represents a click on an action.
// Anything else is a bare wake-up (deadline elapsed or unrelated resume).
func (s ResumeSignal) IsClick() bool {
	return s.ActionClicked != nil
}

// PathValue returns the path or "" if absent.
func (s ResumeSignal) PathValue() string {
	if s.Path == nil {
		return ""
	}
	return *s.Path
}

// Action returns the clicked action label or "" if absent.
func (s ResumeSignal) Action() string {
	if s.ActionClicked == nil {
		return ""
	}
	return *s.ActionClicked
}

// Actor returns the actor name or "" if absent.
func (s ResumeSignal) Actor() string {
	if s.ActorName == nil {
		return ""
	}
	return *s.ActorName
}

// ClickSignal builds a signal for a click on action by actor at path.
func ClickSignal(path, action, actor string) ResumeSignal {
	return ResumeSignal{Path: &path, ActionClicked: &action, ActorName: &actor}
}
