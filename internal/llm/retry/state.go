package retry

import (
	"time"

	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

// Phase is a state of the retry state machine.
type Phase int

// Retry phases. Succeeded, Fatal, Exhausted and Cancelled are terminal.
const (
	PhaseAttempting Phase = iota
	PhaseBackingOff
	PhaseSucceeded
	PhaseFatal
	PhaseExhausted
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseAttempting:
		return "attempting"
	case PhaseBackingOff:
		return "backing_off"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFatal:
		return "fatal"
	case PhaseExhausted:
		return "exhausted"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further attempt will be made.
func (p Phase) Terminal() bool {
	return p >= PhaseSucceeded
}

// State is one snapshot of an invocation's retry progress.
type State struct {
	Phase Phase
	// Attempt counts completed attempts.
	Attempt int
	// NextDelay is the wait before the next attempt while BackingOff.
	NextDelay time.Duration
	LastErr   error
}

// Start returns the initial state.
func (p Policy) Start() State {
	return State{Phase: PhaseAttempting}
}

// Step advances s after an attempt finished with err. It is a pure function
// of its inputs apart from jitter, so the full transition table can be tested
// without timers.
func (p Policy) Step(s State, err error) State {
	s.Attempt++
	s.NextDelay = 0
	s.LastErr = err

	switch {
	case err == nil:
		s.Phase = PhaseSucceeded
	case llmerrors.KindOf(err) == llmerrors.KindCancellationRequested:
		s.Phase = PhaseCancelled
	case !llmerrors.IsRetryable(err):
		s.Phase = PhaseFatal
	case s.Attempt >= p.MaxAttempts:
		s.Phase = PhaseExhausted
	default:
		s.Phase = PhaseBackingOff
		s.NextDelay = p.delayFor(s.Attempt, err)
	}
	return s
}

// Resume moves a BackingOff state back to Attempting once the delay elapsed.
func (s State) Resume() State {
	if s.Phase == PhaseBackingOff {
		s.Phase = PhaseAttempting
		s.NextDelay = 0
	}
	return s
}
