package event

// Type identifies the type of domain event
type Type string

const (
	TypeChainSeeded        Type = "submission.seeded"
	TypeStepApproved       Type = "step.approved"
	TypeStepRejected       Type = "step.rejected"
	TypeSubmissionApproved Type = "submission.approved"
	TypeSubmissionRejected Type = "submission.rejected"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeChainSeeded,
		TypeStepApproved,
		TypeStepRejected,
		TypeSubmissionApproved,
		TypeSubmissionRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the event records the final decision on a submission
func (t Type) IsTerminal() bool {
	return t == TypeSubmissionApproved || t == TypeSubmissionRejected
}
