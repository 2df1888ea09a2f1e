package workflow

import "github.com/garyjia/forms-workflow/internal/domain/entity"

// VisibilityRule decides whether a current pending step shows up in an actor's inbox
type VisibilityRule interface {
	VisibleTo(step *entity.ApprovalStep, actor *entity.Actor) bool
}

// AssigneeRule matches steps explicitly assigned to the actor
type AssigneeRule struct{}

func (AssigneeRule) VisibleTo(step *entity.ApprovalStep, actor *entity.Actor) bool {
	return step.IsAssigned() && step.AssignedTo == actor.ID
}

// RoleRule matches unassigned steps whose role the actor holds.
// An explicit assignee always wins over the role.
type RoleRule struct{}

func (RoleRule) VisibleTo(step *entity.ApprovalStep, actor *entity.Actor) bool {
	return !step.IsAssigned() && step.Role != "" && actor.HasRole(step.Role)
}

// OversightRule gives holders of Role every pending step
type OversightRule struct {
	Role string
}

func (r OversightRule) VisibleTo(_ *entity.ApprovalStep, actor *entity.Actor) bool {
	return actor.HasRole(r.Role)
}

// AnyOf matches when at least one rule matches
type AnyOf []VisibilityRule

func (rules AnyOf) VisibleTo(step *entity.ApprovalStep, actor *entity.Actor) bool {
	for _, rule := range rules {
		if rule.VisibleTo(step, actor) {
			return true
		}
	}
	return false
}

// DefaultVisibility is the inbox rule used by the engine: directors oversee
// everything, everyone else sees their own and their roles' steps.
var DefaultVisibility VisibilityRule = AnyOf{
	OversightRule{Role: entity.RoleDirector},
	AssigneeRule{},
	RoleRule{},
}

// IsVisibleTo applies DefaultVisibility to a pending step. Resolved steps and
// anonymous actors never match.
func IsVisibleTo(step *entity.ApprovalStep, actor *entity.Actor) bool {
	if step == nil || actor == nil || actor.ID == "" || !step.IsPending() {
		return false
	}
	return DefaultVisibility.VisibleTo(step, actor)
}
