package workflow

// State is the workflow status of a submission. The string values are the ones
// persisted in submissions.workflow_status.
type State string

const (
	// StateNone marks a submission whose form has no approval workflow.
	StateNone       State = "none"
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateApproved   State = "approved"
	StateRejected   State = "rejected"
)

var validStates = map[State]bool{
	StateNone:       true,
	StatePending:    true,
	StateInProgress: true,
	StateApproved:   true,
	StateRejected:   true,
}

var terminalStates = map[State]bool{
	StateNone:     true,
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsResolved reports whether the approval chain reached a final decision
func (s State) IsResolved() bool {
	return s == StateApproved || s == StateRejected
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known workflow status
func (s State) IsValid() bool {
	return validStates[s]
}
