package workflow

// Trigger is an event that moves a submission between workflow states
type Trigger string

const (
	// TriggerSeed starts the approval chain of a pending submission.
	TriggerSeed Trigger = "SEED"
	// TriggerAdvance approves a non-final step; the submission stays in progress.
	TriggerAdvance Trigger = "ADVANCE"
	// TriggerApprove approves the final step.
	TriggerApprove Trigger = "APPROVE"
	// TriggerReject rejects any step and ends the chain.
	TriggerReject Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
