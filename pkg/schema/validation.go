package schema

import "fmt"

// ValidationIssue is a single problem found in an artifact body, located by a
// JSON pointer into the body (e.g. "/2/elements/0").
type ValidationIssue struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// ValidationResult aggregates the issues found while validating a body.
type ValidationResult struct {
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// Valid returns true if no issue was recorded.
func (r *ValidationResult) Valid() bool {
	return len(r.Issues) == 0
}

// Add appends an issue.
func (r *ValidationResult) Add(location, message string) {
	r.Issues = append(r.Issues, ValidationIssue{Location: location, Message: message})
}

// ToError converts the result to an OpcodeError if invalid, nil if valid.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	msg := r.Issues[0].Message
	if r.Issues[0].Location != "" {
		msg = fmt.Sprintf("%s: %s", r.Issues[0].Location, msg)
	}
	if len(r.Issues) > 1 {
		msg = fmt.Sprintf("artifact body has %d problems", len(r.Issues))
	}

	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{
			"issue_count": len(r.Issues),
			"issues":      r.Issues,
		})
}
