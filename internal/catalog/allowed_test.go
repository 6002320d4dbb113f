package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rendis/actionwait/pkg/schema"
)

func TestAllowedSet_Contains(t *testing.T) {
	s := NewAllowedSet([]schema.Action{{Label: "Approve"}, {Label: "Dismiss"}, {Label: "Approve"}})
	assert.True(t, s.Contains("Approve"))
	assert.True(t, s.Contains("Dismiss"))
	assert.False(t, s.Contains("Snooze"))
	assert.False(t, s.Contains("approve"), "labels are case-sensitive")
}

func TestAllowedSet_Validate(t *testing.T) {
	s := NewAllowedSet([]schema.Action{{Label: "Approve", Value: "Approve"}, {Label: "Dismiss", Value: "Dismiss"}})
	assert.NoError(t, s.Validate("Approve"))

	err := s.Validate("Snooze")
	assert.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	assert.Contains(t, err.Error(), "Snooze")
}

func TestAllowedSet_EmptyAcceptsNothing(t *testing.T) {
	var s AllowedSet
	assert.False(t, s.Contains(""))
	assert.Error(t, s.Validate("anything"))
}
