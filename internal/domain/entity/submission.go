package entity

import "time"

// Submission is one filled-in form. Payload and SubmittedAt never change after
// creation; only the workflow fields move.
type Submission struct {
	ID       string                 `json:"id"`
	FormID   string                 `json:"form_id"`
	FormSlug string                 `json:"form_slug"`
	Payload  map[string]interface{} `json:"payload"`

	// SubmittedBy is empty for anonymous submissions
	SubmittedBy string    `json:"submitted_by,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`

	WorkflowStatus string `json:"workflow_status"`
	// CurrentStep is empty when no step is awaiting action
	CurrentStep string `json:"current_step,omitempty"`
}

// IsAnonymous reports whether the submission has no known submitter
func (s *Submission) IsAnonymous() bool {
	return s.SubmittedBy == ""
}
