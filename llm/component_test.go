package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/voiceflow/lifecycle"
	"github.com/BaSui01/voiceflow/registry"
	"github.com/BaSui01/voiceflow/types"
)

type stubBackend struct {
	result    *Result
	err       error
	gotPrompt string
	gotOpts   Options
	cancelled bool
	closed    bool
}

func (s *stubBackend) Generate(_ context.Context, prompt string, opts Options) (*Result, error) {
	s.gotPrompt = prompt
	s.gotOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	out := *s.result
	return &out, nil
}

func (s *stubBackend) Cancel() { s.cancelled = true }

func (s *stubBackend) Close() error {
	s.closed = true
	return nil
}

func newTestComponent(t *testing.T, backend *stubBackend) *Component {
	t.Helper()
	r := registry.New(nil)
	require.NoError(t, r.Register(registry.Provider{
		Name:       "llamacpp",
		Capability: types.CapabilityLLM,
		Priority:   10,
		CanHandle:  func(*types.ServiceRequest) bool { return true },
		Create:     func(*types.ServiceRequest) (any, error) { return backend, nil },
	}))
	c := NewComponent(r, nil, nil)
	require.NoError(t, c.Configure(DefaultConfig()))
	return c
}

func TestGenerate(t *testing.T) {
	backend := &stubBackend{result: &Result{
		Text:             "The answer is 4.",
		FinishReason:     "stop",
		PromptTokens:     12,
		CompletionTokens: 6,
		TotalTokens:      18,
	}}
	c := newTestComponent(t, backend)
	require.NoError(t, c.LoadModel(context.Background(), "/models/llama.gguf", "llama-3b", "Llama 3B"))

	res, err := c.Generate(context.Background(), "What is 2+2?", nil)
	require.NoError(t, err)
	assert.Equal(t, "The answer is 4.", res.Text)
	assert.Equal(t, 18, res.TotalTokens)
	assert.Equal(t, "llama-3b", res.ModelID)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "What is 2+2?", backend.gotPrompt)
	assert.Equal(t, DefaultConfig().MaxTokens, backend.gotOpts.MaxTokens)
	assert.Greater(t, res.TokensPerSecond, 0.0)
}

func TestGenerateWithOptions(t *testing.T) {
	backend := &stubBackend{result: &Result{Text: "ok", TotalTokens: 1, PromptTokens: 1, CompletionTokens: 1}}
	c := newTestComponent(t, backend)
	require.NoError(t, c.LoadModel(context.Background(), "/models/llama.gguf", "", ""))

	opts := &Options{SystemPrompt: "Be terse.", MaxTokens: 32, Temperature: 0.1}
	_, err := c.Generate(context.Background(), "hello", opts)
	require.NoError(t, err)
	assert.Equal(t, "Be terse.", backend.gotOpts.SystemPrompt)
	assert.Equal(t, 32, backend.gotOpts.MaxTokens)
}

func TestGenerateEstimatesUsageWhenBackendOmitsIt(t *testing.T) {
	backend := &stubBackend{result: &Result{Text: "twelve characters here"}}
	c := newTestComponent(t, backend)
	require.NoError(t, c.LoadModel(context.Background(), "/models/llama.gguf", "", ""))

	c.cfgMu.Lock()
	c.counter = estimatorCounter{}
	c.cfgMu.Unlock()

	res, err := c.Generate(context.Background(), "some prompt text", nil)
	require.NoError(t, err)
	assert.Greater(t, res.PromptTokens, 0)
	assert.Greater(t, res.CompletionTokens, 0)
	assert.Equal(t, res.PromptTokens+res.CompletionTokens, res.TotalTokens)
}

func TestGenerateEmptyPrompt(t *testing.T) {
	c := newTestComponent(t, &stubBackend{result: &Result{}})
	_, err := c.Generate(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestGenerateBeforeLoad(t *testing.T) {
	c := newTestComponent(t, &stubBackend{result: &Result{}})
	_, err := c.Generate(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, lifecycle.ErrNotReady)
}

func TestGenerateBackendError(t *testing.T) {
	boom := errors.New("kv cache exhausted")
	c := newTestComponent(t, &stubBackend{err: boom})
	require.NoError(t, c.LoadModel(context.Background(), "/models/llama.gguf", "", ""))

	_, err := c.Generate(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, lifecycle.StateReady, c.State())
}

func TestCancelReachesBackend(t *testing.T) {
	backend := &stubBackend{result: &Result{Text: "x"}}
	c := newTestComponent(t, backend)
	require.NoError(t, c.LoadModel(context.Background(), "/models/llama.gguf", "", ""))

	c.Cancel()
	assert.True(t, backend.cancelled)
}

func TestCancelWithoutBackendIsNoop(t *testing.T) {
	c := newTestComponent(t, &stubBackend{result: &Result{}})
	c.Cancel() // must not panic
}

func TestConfigureRejectsBadTemperature(t *testing.T) {
	c := NewComponent(registry.New(nil), nil, nil)
	cfg := DefaultConfig()
	cfg.Temperature = 3.5
	assert.Error(t, c.Configure(cfg))
}

func TestUnloadClosesBackend(t *testing.T) {
	backend := &stubBackend{result: &Result{Text: "x"}}
	c := newTestComponent(t, backend)
	require.NoError(t, c.LoadModel(context.Background(), "/models/llama.gguf", "", ""))

	require.NoError(t, c.Unload())
	assert.True(t, backend.closed)
}
