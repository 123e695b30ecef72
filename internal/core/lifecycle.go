package core

import "github.com/pingcap/errors"

// RunState is the phase of a single task run.
//
// The progression is linear: INVOKING -> VERIFYING -> {SUCCEEDED, FAILED}.
// INVOKING may drop straight to FAILED when the tool never produced an exit
// status at all. There is no retry loop; both terminal states are final.
type RunState string

const (
	StateInvoking  RunState = "INVOKING"
	StateVerifying RunState = "VERIFYING"
	StateSucceeded RunState = "SUCCEEDED"
	StateFailed    RunState = "FAILED"
)

// IsTerminal reports whether the state is final.
func (s RunState) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed:
		return true
	default:
		return false
	}
}

// Lifecycle tracks one task run through its phases with validated
// transitions, so an out-of-order orchestration bug fails loudly instead of
// producing a half-verified outcome.
type Lifecycle struct {
	state RunState
}

// NewLifecycle starts a run in the INVOKING phase.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateInvoking}
}

// State returns the current phase.
func (l *Lifecycle) State() RunState {
	return l.state
}

// Advance moves the run to the given phase. The transition must be one the
// linear progression allows; anything else is an error and leaves the state
// unchanged.
func (l *Lifecycle) Advance(to RunState) error {
	if !isAllowedTransition(l.state, to) {
		return errors.Errorf("disallowed run transition: %s -> %s", l.state, to)
	}
	l.state = to
	return nil
}

func isAllowedTransition(from, to RunState) bool {
	switch from {
	case StateInvoking:
		return to == StateVerifying || to == StateFailed
	case StateVerifying:
		return to == StateSucceeded || to == StateFailed
	default:
		return false
	}
}
