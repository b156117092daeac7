package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestEstimatorCounter(t *testing.T) {
	c := estimatorCounter{}

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"single char", "a", 1},
		{"four ascii chars", "abcd", 1},
		{"eight ascii chars", "abcdefgh", 2},
		{"cjk counts per rune", "你好", 2},
		{"mixed", "hi你好", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Count(tt.text))
		})
	}
}

// TestProperty_EstimatorMonotonic checks that appending text never
// decreases the estimate and that non-empty text costs at least one
// token.
func TestProperty_EstimatorMonotonic(t *testing.T) {
	c := estimatorCounter{}
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.String().Draw(rt, "a")
		b := rapid.String().Draw(rt, "b")

		if a != "" && c.Count(a) < 1 {
			rt.Fatalf("non-empty text %q estimated at zero tokens", a)
		}
		if c.Count(a+b) < c.Count(a) {
			rt.Fatalf("appending %q to %q decreased the estimate", b, a)
		}
	})
}

func TestEstimatorScalesWithLength(t *testing.T) {
	c := estimatorCounter{}
	short := c.Count("hello world")
	long := c.Count(strings.Repeat("hello world ", 100))
	assert.Greater(t, long, short*50)
}
