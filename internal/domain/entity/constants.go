package entity

// Workflow status constants for Submission. They match workflow.State values.
const (
	WorkflowStatusNone       = "none"
	WorkflowStatusPending    = "pending"
	WorkflowStatusInProgress = "in_progress"
	WorkflowStatusApproved   = "approved"
	WorkflowStatusRejected   = "rejected"
)

// Step status constants for ApprovalStep
const (
	StepStatusPending  = "pending"
	StepStatusApproved = "approved"
	StepStatusRejected = "rejected"
)

// Role constants
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleDirector = "director"
	RoleAdmin    = "admin"
)

// Assignment rule kinds for StepDefinition
const (
	AssignRole    = "role"
	AssignManager = "manager"
	AssignUser    = "user"
)
