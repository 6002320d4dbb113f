package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_EmptyIsValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())
	assert.Nil(t, r.ToError())
}

func TestValidationResult_ToError_SingleIssue(t *testing.T) {
	r := &ValidationResult{}
	r.Add("/0", "missing property 'type'")

	err := r.ToError()
	require.NotNil(t, err)

	opErr, ok := err.(*OpcodeError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeValidation, opErr.Code)
	assert.Equal(t, "/0: missing property 'type'", opErr.Message)
	assert.Equal(t, 1, opErr.Details["issue_count"])
}

func TestValidationResult_ToError_MultipleIssues(t *testing.T) {
	r := &ValidationResult{}
	r.Add("/0", "err1")
	r.Add("/1/elements/0", "err2")

	err := r.ToError()
	require.NotNil(t, err)
	assert.True(t, IsCode(err, ErrCodeValidation))

	opErr := err.(*OpcodeError)
	assert.Contains(t, opErr.Message, "2 problems")
	assert.Equal(t, 2, opErr.Details["issue_count"])
}
