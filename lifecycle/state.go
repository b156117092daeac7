// Package lifecycle provides the shared state machine that every
// capability component (VAD, STT, LLM, TTS) runs its backend through:
// configure, load, serve, unload, with explicit failure and reset.
package lifecycle

import "fmt"

// State is the lifecycle state of a component's backend.
type State string

const (
	StateUninitialized State = "uninitialized" // No configuration, no backend
	StateConfigured    State = "configured"    // Options accepted, nothing loaded
	StateLoading       State = "loading"       // Load in flight
	StateReady         State = "ready"         // Backend handle live
	StateCleaningUp    State = "cleaning_up"   // Unload in flight
	StateFailed        State = "failed"        // Load failed, error retained
)

// validTransitions defines the legal state transitions.
var validTransitions = map[State][]State{
	StateUninitialized: {StateConfigured},
	StateConfigured:    {StateLoading},
	StateLoading:       {StateReady, StateFailed},
	StateReady:         {StateLoading, StateCleaningUp}, // Re-load replaces the backend
	StateCleaningUp:    {StateUninitialized},
	StateFailed:        {StateConfigured}, // Explicit reset only
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition reports an illegal lifecycle transition.
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("lifecycle: invalid state transition: %s -> %s", e.From, e.To)
}
