// Package llm provides text generation: a lifecycle-managed component
// that resolves a generation backend through the service registry, with
// orchestrator-friendly cancellation and token accounting.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/voiceflow/types"
)

// ErrEmptyPrompt is returned when generation is attempted without input.
var ErrEmptyPrompt = errors.New("llm: empty prompt")

// Config holds component-level generation settings.
type Config struct {
	SystemPrompt       string
	MaxTokens          int
	Temperature        float32
	TopP               float32
	ContextLength      int
	PreferredFramework types.Framework
}

// DefaultConfig returns conservative on-device generation settings.
func DefaultConfig() Config {
	return Config{
		MaxTokens:     256,
		Temperature:   0.7,
		TopP:          0.9,
		ContextLength: 4096,
	}
}

// Options are per-request generation settings.
type Options struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	TopP         float32
	Stop         []string
}

// Result is a completed generation.
type Result struct {
	ID               string
	Text             string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	TokensPerSecond  float64
	ModelID          string
	ProcessingTime   time.Duration
}

// Backend is the generation interface resolved through the registry.
// Cancel is best-effort and cooperative: a conforming backend stops at
// its next token boundary and returns what it has.
type Backend interface {
	Generate(ctx context.Context, prompt string, opts Options) (*Result, error)
	Cancel()
	Close() error
}
