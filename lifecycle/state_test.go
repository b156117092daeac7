package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
		want bool
	}{
		{"uninitialized to configured", StateUninitialized, StateConfigured, true},
		{"configured to loading", StateConfigured, StateLoading, true},
		{"loading to ready", StateLoading, StateReady, true},
		{"loading to failed", StateLoading, StateFailed, true},
		{"ready to loading (re-load)", StateReady, StateLoading, true},
		{"ready to cleaning_up", StateReady, StateCleaningUp, true},
		{"cleaning_up to uninitialized", StateCleaningUp, StateUninitialized, true},
		{"failed to configured (reset)", StateFailed, StateConfigured, true},

		{"uninitialized to ready", StateUninitialized, StateReady, false},
		{"uninitialized to loading", StateUninitialized, StateLoading, false},
		{"configured to ready", StateConfigured, StateReady, false},
		{"ready to failed", StateReady, StateFailed, false},
		{"failed to loading", StateFailed, StateLoading, false},
		{"failed to ready", StateFailed, StateReady, false},
		{"cleaning_up to ready", StateCleaningUp, StateReady, false},
		{"unknown state", State("bogus"), StateReady, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestErrInvalidTransitionMessage(t *testing.T) {
	err := ErrInvalidTransition{From: StateUninitialized, To: StateReady}
	assert.Contains(t, err.Error(), "uninitialized -> ready")
}

// TestProperty_TransitionTableClosed checks that every transition the
// table allows starts and ends in a known state, and that Failed can
// only ever leave through Configured.
func TestProperty_TransitionTableClosed(t *testing.T) {
	known := map[State]bool{
		StateUninitialized: true,
		StateConfigured:    true,
		StateLoading:       true,
		StateReady:         true,
		StateCleaningUp:    true,
		StateFailed:        true,
	}
	states := []State{
		StateUninitialized, StateConfigured, StateLoading,
		StateReady, StateCleaningUp, StateFailed,
	}

	rapid.Check(t, func(rt *rapid.T) {
		from := rapid.SampledFrom(states).Draw(rt, "from")
		to := rapid.SampledFrom(states).Draw(rt, "to")

		if CanTransition(from, to) {
			if !known[from] || !known[to] {
				rt.Fatalf("transition %s -> %s involves unknown state", from, to)
			}
			if from == StateFailed && to != StateConfigured {
				rt.Fatalf("failed state must only recover through configured, got %s", to)
			}
			if to == StateReady && from != StateLoading {
				rt.Fatalf("ready must only be reached from loading, got %s", from)
			}
		}
	})
}
