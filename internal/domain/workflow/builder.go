package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc decides whether a guarded transition may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects transition tables and stamps out machines
type StateMachineBuilder interface {
	// Configure returns the transition table of the given source state
	Configure(state State) StateConfiguration

	// Build creates a machine positioned at initialState
	Build(initialState State) StateMachine
}

// StateConfiguration configures the transitions leaving one state
type StateConfiguration interface {
	// Permit allows trigger to move to toState
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf allows trigger to move to toState when guard passes
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration

	// PermitReentry allows trigger to keep the machine in the same state
	PermitReentry(trigger Trigger) StateConfiguration
}

type transition struct {
	to    State
	guard GuardFunc
}

type transitionTable map[Trigger][]transition

type stateConfig struct {
	from  State
	table transitionTable
}

type stateMachineBuilder struct {
	tables map[State]*stateConfig
}

type stateMachine struct {
	current State
	tables  map[State]transitionTable
}

// NewBuilder creates an empty state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{tables: make(map[State]*stateConfig)}
}

// Configure returns the transition table of the given source state.
// It panics on unknown states since tables are wired at startup.
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	cfg, ok := b.tables[state]
	if !ok {
		cfg = &stateConfig{from: state, table: make(transitionTable)}
		b.tables[state] = cfg
	}
	return cfg
}

// Build creates a machine with its own copy of the transition tables
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	tables := make(map[State]transitionTable, len(b.tables))
	for state, cfg := range b.tables {
		copied := make(transitionTable, len(cfg.table))
		for trigger, ts := range cfg.table {
			copied[trigger] = append([]transition(nil), ts...)
		}
		tables[state] = copied
	}

	return &stateMachine{current: initialState, tables: tables}
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	if c.from.IsTerminal() {
		panic(fmt.Sprintf("terminal state %s cannot have outgoing transitions", c.from))
	}

	c.table[trigger] = append(c.table[trigger], transition{to: toState, guard: guard})
	return c
}

func (c *stateConfig) PermitReentry(trigger Trigger) StateConfiguration {
	return c.PermitIf(trigger, c.from, nil)
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	return len(m.tables[m.current][trigger]) > 0
}

// Fire tries the configured transitions in order and takes the first one whose guard passes
func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	if m.current.IsTerminal() {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrTerminalState, trigger, m.current)
	}

	candidates := m.tables[m.current][trigger]
	if len(candidates) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range candidates {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from %s", ErrGuardFailed, trigger, m.current)
}

// PermittedTriggers returns the configured triggers in a stable order
func (m *stateMachine) PermittedTriggers() []Trigger {
	table := m.tables[m.current]
	triggers := make([]Trigger, 0, len(table))
	for trigger := range table {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
