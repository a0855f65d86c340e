package workflow

import (
	"context"
	"fmt"
)

// GuardFunc is a function that evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds a configured stage machine
type StateMachineBuilder interface {
	// Configure returns a configuration for the given stage
	Configure(stage Stage) StateConfiguration

	// Build creates a new machine positioned at the given stage
	Build(initial Stage) (StateMachine, error)
}

// StateConfiguration configures transitions for a specific stage
type StateConfiguration interface {
	// PermitIf allows a trigger to transition to the target stage if the guard passes
	PermitIf(trigger Trigger, to Stage, guard GuardFunc) StateConfiguration
}

type transition struct {
	to    Stage
	guard GuardFunc
}

type stateConfig struct {
	builder     *stateMachineBuilder
	from        Stage
	transitions map[Trigger][]transition
}

type stateMachineBuilder struct {
	known          map[Stage]bool
	configurations map[Stage]*stateConfig
	errs           []error
}

type stateMachine struct {
	current        Stage
	configurations map[Stage]*stateConfig
}

// NewBuilder creates a builder whose machine may only use the given stages.
// StageDone is always known.
func NewBuilder(stages Stages) StateMachineBuilder {
	known := map[Stage]bool{StageDone: true}
	for _, s := range stages {
		known[s] = true
	}
	return &stateMachineBuilder{
		known:          known,
		configurations: make(map[Stage]*stateConfig),
	}
}

// Configure returns a configuration for the given stage
func (b *stateMachineBuilder) Configure(stage Stage) StateConfiguration {
	if !b.known[stage] {
		b.errs = append(b.errs, fmt.Errorf("%w: %q", ErrInvalidState, stage))
	}

	config, exists := b.configurations[stage]
	if !exists {
		config = &stateConfig{
			builder:     b,
			from:        stage,
			transitions: make(map[Trigger][]transition),
		}
		b.configurations[stage] = config
	}

	return config
}

// Build creates a new machine positioned at the given stage
func (b *stateMachineBuilder) Build(initial Stage) (StateMachine, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if !b.known[initial] {
		return nil, fmt.Errorf("%w: initial stage %q", ErrInvalidState, initial)
	}

	// Copy so later Configure calls do not leak into built machines
	configsCopy := make(map[Stage]*stateConfig, len(b.configurations))
	for stage, config := range b.configurations {
		transitionsCopy := make(map[Trigger][]transition, len(config.transitions))
		for trigger, ts := range config.transitions {
			transitionsCopy[trigger] = append([]transition{}, ts...)
		}
		configsCopy[stage] = &stateConfig{
			from:        stage,
			transitions: transitionsCopy,
		}
	}

	return &stateMachine{
		current:        initial,
		configurations: configsCopy,
	}, nil
}

// PermitIf allows a trigger to transition to the target stage if the guard
// passes. A nil guard always passes.
func (c *stateConfig) PermitIf(trigger Trigger, to Stage, guard GuardFunc) StateConfiguration {
	if !c.builder.known[to] {
		c.builder.errs = append(c.builder.errs, fmt.Errorf("%w: target %q", ErrInvalidState, to))
	}

	c.transitions[trigger] = append(c.transitions[trigger], transition{
		to:    to,
		guard: guard,
	})

	return c
}

// State returns the current stage
func (m *stateMachine) State() Stage {
	return m.current
}

// Fire attempts to execute the trigger, moving to the new stage if allowed
func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	config, exists := m.configurations[m.current]
	if !exists {
		return fmt.Errorf("%w: cannot fire %s from %s (no configuration)", ErrInvalidTransition, trigger, m.current)
	}

	transitions := config.transitions[trigger]
	if len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}

	return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

// PermittedTriggers returns the triggers Fire would accept from the current
// stage, in decision order
func (m *stateMachine) PermittedTriggers(ctx context.Context) []Trigger {
	config, exists := m.configurations[m.current]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for _, trigger := range decisionOrder {
		for _, t := range config.transitions[trigger] {
			if t.guard == nil || t.guard(ctx) {
				triggers = append(triggers, trigger)
				break
			}
		}
	}

	return triggers
}
