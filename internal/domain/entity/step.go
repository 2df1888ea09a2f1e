package entity

import "time"

// ApprovalStep is one ordered step of a submission's approval chain.
// Either AssignedTo or Role is set: assigned steps name a user, the rest are
// matched against actor roles at query time.
type ApprovalStep struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submission_id"`
	StepOrder    int    `json:"step_order"`
	StepName     string `json:"step_name"`

	Role       string `json:"role,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`

	Status   string     `json:"status"`
	ActedBy  string     `json:"acted_by,omitempty"`
	ActedAt  *time.Time `json:"acted_at,omitempty"`
	Comments string     `json:"comments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsPending reports whether the step still awaits a decision
func (s *ApprovalStep) IsPending() bool {
	return s.Status == StepStatusPending
}

// IsAssigned reports whether the step names an explicit assignee
func (s *ApprovalStep) IsAssigned() bool {
	return s.AssignedTo != ""
}

// ActionableStep is a current pending step together with its submission
type ActionableStep struct {
	Submission *Submission
	Step       *ApprovalStep
}

// CompletedStep is a resolved step together with its submission
type CompletedStep struct {
	Submission *Submission
	Step       *ApprovalStep
}
