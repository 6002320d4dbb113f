package catalog

import "github.com/rendis/actionwait/pkg/schema"

// AllowedSet is the set of action labels valid for one wait. It is derived from
// step configuration and never persisted.
type AllowedSet struct {
	labels map[string]struct{}
}

// NewAllowedSet builds a set from actions. Duplicate labels collapse.
func NewAllowedSet(actions []schema.Action) AllowedSet {
	s := AllowedSet{labels: make(map[string]struct{}, len(actions))}
	for _, a := range actions {
		s.labels[a.Label] = struct{}{}
	}
	return s
}

// Contains reports whether label is offered.
func (s AllowedSet) Contains(label string) bool {
	_, ok := s.labels[label]
	return ok
}

// Validate checks that label is one of the offered actions.
// Unlike free-form decisions, an empty set accepts nothing.
func (s AllowedSet) Validate(label string) error {
	if s.Contains(label) {
		return nil
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "invalid action %q: not in offered actions", label)
}
