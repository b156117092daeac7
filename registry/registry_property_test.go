package registry

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/voiceflow/types"
)

// TestProperty_ResolveIsDeterministic checks that for any set of
// registered providers, resolution always picks the accepting provider
// with the highest priority, and repeated resolution picks the same one.
func TestProperty_ResolveIsDeterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := New(nil)

		n := rapid.IntRange(1, 10).Draw(rt, "numProviders")
		priorities := make(map[string]int, n)
		accepting := make(map[string]bool, n)

		for i := 0; i < n; i++ {
			name := fmt.Sprintf("provider-%d", i)
			priority := rapid.IntRange(-5, 5).Draw(rt, fmt.Sprintf("priority_%d", i))
			accepts := rapid.Bool().Draw(rt, fmt.Sprintf("accepts_%d", i))
			priorities[name] = priority
			accepting[name] = accepts

			p := Provider{
				Name:       name,
				Capability: types.CapabilitySTT,
				Priority:   priority,
				CanHandle:  func(*types.ServiceRequest) bool { return accepts },
				Create:     func(*types.ServiceRequest) (any, error) { return name, nil },
			}
			require.NoError(rt, r.Register(p))
		}

		req := &types.ServiceRequest{Identifier: "model"}
		first, err1 := r.Resolve(types.CapabilitySTT, req)
		second, err2 := r.Resolve(types.CapabilitySTT, req)

		anyAccepts := false
		for _, a := range accepting {
			if a {
				anyAccepts = true
				break
			}
		}

		if !anyAccepts {
			require.ErrorIs(rt, err1, ErrNoCapableProvider)
			require.ErrorIs(rt, err2, ErrNoCapableProvider)
			return
		}

		require.NoError(rt, err1)
		require.NoError(rt, err2)
		require.Equal(rt, first, second, "resolution must be deterministic")

		winner := first.(string)
		require.True(rt, accepting[winner])
		for name, accepts := range accepting {
			if accepts && priorities[name] > priorities[winner] {
				rt.Fatalf("provider %s (priority %d) should outrank winner %s (priority %d)",
					name, priorities[name], winner, priorities[winner])
			}
		}
	})
}

// TestProperty_ListProvidersOrdering checks that ListProviders always
// returns names sorted by non-increasing priority regardless of the
// order they were registered in.
func TestProperty_ListProvidersOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("resolution order is sorted by priority descending", prop.ForAll(
		func(priorities []int) bool {
			r := New(nil)
			byName := make(map[string]int, len(priorities))
			for i, p := range priorities {
				name := fmt.Sprintf("p%d", i)
				byName[name] = p
				if err := r.Register(Provider{
					Name:       name,
					Capability: types.CapabilityTTS,
					Priority:   p,
					CanHandle:  func(*types.ServiceRequest) bool { return true },
					Create:     func(*types.ServiceRequest) (any, error) { return name, nil },
				}); err != nil {
					return false
				}
			}

			names := r.ListProviders(types.CapabilityTTS)
			if len(names) != len(priorities) {
				return false
			}
			for i := 1; i < len(names); i++ {
				if byName[names[i-1]] < byName[names[i]] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-100, 100)),
	))

	properties.TestingRun(t)
}
