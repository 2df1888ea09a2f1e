package service

import (
	"time"

	"github.com/garyjia/forms-workflow/internal/domain/entity"
)

// Task is a pending step shown in an actor's inbox
type Task struct {
	SubmissionID  string                 `json:"submission_id"`
	FormID        string                 `json:"form_id"`
	FormSlug      string                 `json:"form_slug"`
	FormTitle     string                 `json:"form_title"`
	StepName      string                 `json:"step_name"`
	StepOrder     int                    `json:"step_order"`
	AssignedTo    string                 `json:"assigned_to,omitempty"`
	Role          string                 `json:"role,omitempty"`
	SubmittedBy   string                 `json:"submitted_by,omitempty"`
	SubmitterName string                 `json:"submitter_name,omitempty"`
	SubmittedAt   time.Time              `json:"submitted_at"`
	Payload       map[string]interface{} `json:"payload"`
}

// SubmissionSummary is one of the actor's own submissions with its current step
type SubmissionSummary struct {
	SubmissionID      string    `json:"submission_id"`
	FormSlug          string    `json:"form_slug"`
	FormTitle         string    `json:"form_title"`
	WorkflowStatus    string    `json:"workflow_status"`
	CurrentStep       string    `json:"current_step,omitempty"`
	CurrentAssignee   string    `json:"current_assignee,omitempty"`
	CurrentRole       string    `json:"current_role,omitempty"`
	CurrentStepStatus string    `json:"current_step_status,omitempty"`
	SubmittedAt       time.Time `json:"submitted_at"`
}

// CompletedTask is a step the actor resolved
type CompletedTask struct {
	SubmissionID   string    `json:"submission_id"`
	FormSlug       string    `json:"form_slug"`
	FormTitle      string    `json:"form_title"`
	StepName       string    `json:"step_name"`
	Status         string    `json:"status"`
	Comments       string    `json:"comments,omitempty"`
	ActedAt        time.Time `json:"acted_at"`
	SubmittedBy    string    `json:"submitted_by,omitempty"`
	WorkflowStatus string    `json:"workflow_status"`
}

// SubmissionDetail is a submission with its full ordered approval chain
type SubmissionDetail struct {
	*entity.Submission
	FormTitle string                 `json:"form_title"`
	Steps     []*entity.ApprovalStep `json:"steps"`
}

// Profile describes the requesting actor
type Profile struct {
	*entity.Actor
	Manager       *entity.Actor   `json:"manager,omitempty"`
	DirectReports []*entity.Actor `json:"direct_reports"`
}
