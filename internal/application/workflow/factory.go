package workflow

import (
	domainwf "github.com/garyjia/forms-workflow/internal/domain/workflow"
)

// BuildSubmissionStateMachine creates the state machine guarding submission status.
// none, approved and rejected are terminal and have no outgoing transitions.
func BuildSubmissionStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerSeed, domainwf.StateInProgress)

	builder.Configure(domainwf.StateInProgress).
		PermitReentry(domainwf.TriggerAdvance).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	return builder.Build(initialState)
}
