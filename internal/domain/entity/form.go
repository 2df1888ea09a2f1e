package entity

import (
	"errors"
	"fmt"
)

// AssignmentRule decides who acts on a step
type AssignmentRule struct {
	Kind string `json:"kind" yaml:"kind"`
	Role string `json:"role,omitempty" yaml:"role"`
	User string `json:"user,omitempty" yaml:"user"`
}

// StepDefinition is one entry of a process definition
type StepDefinition struct {
	Name   string         `json:"name" yaml:"name"`
	Assign AssignmentRule `json:"assign" yaml:"assign"`
}

// ProcessDefinition is the ordered list of approval steps configured for a form
type ProcessDefinition struct {
	Steps []StepDefinition `json:"steps" yaml:"steps"`
}

// Validate checks that the definition has at least one step, names are unique
// and every assignment rule is complete.
func (d ProcessDefinition) Validate() error {
	if len(d.Steps) == 0 {
		return errors.New("process definition has no steps")
	}

	seen := make(map[string]bool, len(d.Steps))
	for i, step := range d.Steps {
		if step.Name == "" {
			return fmt.Errorf("step %d has no name", i)
		}
		if seen[step.Name] {
			return fmt.Errorf("duplicate step name %q", step.Name)
		}
		seen[step.Name] = true

		switch step.Assign.Kind {
		case AssignManager:
		case AssignRole:
			if step.Assign.Role == "" {
				return fmt.Errorf("step %q: role assignment requires a role", step.Name)
			}
		case AssignUser:
			if step.Assign.User == "" {
				return fmt.Errorf("step %q: user assignment requires a user", step.Name)
			}
		default:
			return fmt.Errorf("step %q: unknown assignment kind %q", step.Name, step.Assign.Kind)
		}
	}
	return nil
}

// FormConfig describes a form and its approval process
type FormConfig struct {
	ID              string            `json:"id" yaml:"id"`
	Slug            string            `json:"slug" yaml:"slug"`
	Title           string            `json:"title" yaml:"title"`
	WorkflowEnabled bool              `json:"workflow_enabled" yaml:"workflow_enabled"`
	AllowAnonymous  bool              `json:"allow_anonymous" yaml:"allow_anonymous"`
	Condition       string            `json:"condition,omitempty" yaml:"condition"`
	Process         ProcessDefinition `json:"process" yaml:"process"`
}

// ProcessStarted is the message handed to the external orchestrator after seeding
type ProcessStarted struct {
	SubmissionID string `json:"submissionId"`
	FormSlug     string `json:"formSlug"`
	SubmittedBy  string `json:"submittedBy,omitempty"`
}
