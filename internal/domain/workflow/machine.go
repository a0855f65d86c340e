package workflow

import "context"

// StateMachine tracks the current stage and validates transitions
type StateMachine interface {
	// State returns the current stage
	State() Stage

	// Fire attempts to execute the trigger, moving to the new stage if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns the triggers whose guard passes in the current stage
	PermittedTriggers(ctx context.Context) []Trigger
}

// BuildStageMachine configures the linear review machine for a stage list.
// Every configured stage permits approve to the following stage (StageDone
// after the last one) and reject or request_revision back onto itself. All
// transitions share the guard. StageDone has no outgoing transitions.
func BuildStageMachine(stages Stages, current Stage, guard GuardFunc) (StateMachine, error) {
	if err := stages.Validate(); err != nil {
		return nil, err
	}

	b := NewBuilder(stages)
	for _, s := range stages {
		next, _ := stages.After(s)
		b.Configure(s).
			PermitIf(TriggerApprove, next, guard).
			PermitIf(TriggerReject, s, guard).
			PermitIf(TriggerRequestRevision, s, guard)
	}

	return b.Build(current)
}
