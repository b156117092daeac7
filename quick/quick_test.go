package quick

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/voiceflow/agent"
	"github.com/BaSui01/voiceflow/config"
	"github.com/BaSui01/voiceflow/registry"
	"github.com/BaSui01/voiceflow/testutil/mocks"
	"github.com/BaSui01/voiceflow/types"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := *config.Default()
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")
	return cfg
}

func TestNewAssemblesRuntime(t *testing.T) {
	r := registry.New(zap.NewNop())
	backends := mocks.NewBackends()
	require.NoError(t, backends.Register(r))

	rt, err := New(
		WithConfig(testConfig(t)),
		WithLogger(zap.NewNop()),
		WithRegistry(r),
		WithPrometheusRegisterer(prometheus.NewRegistry()),
		WithSTTModel("mock://whisper.onnx", "whisper-tiny", "Whisper Tiny"),
		WithLLMModel("mock://qwen.gguf", "qwen-0.5b", "Qwen 0.5B"),
		WithTTSVoice("mock://piper.onnx", "piper-amy", "Piper Amy"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	require.True(t, rt.Agent.IsReady())
	require.NotNil(t, rt.History)

	res, err := rt.Agent.ProcessTurn(context.Background(), make([]byte, 3200))
	require.NoError(t, err)
	assert.Equal(t, "Turning the lights on.", res.Response)
	require.NoError(t, rt.Agent.CompletePlayback())

	// The turn landed in the history store.
	rows, err := rt.History.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, res.TurnID, rows[0].TurnID)
	assert.Equal(t, "completed", rows[0].Status)
}

func TestNewWithoutModelsIsNotReady(t *testing.T) {
	r := registry.New(zap.NewNop())
	require.NoError(t, mocks.NewBackends().Register(r))

	cfg := *config.Default()
	rt, err := New(
		WithConfig(cfg),
		WithLogger(zap.NewNop()),
		WithRegistry(r),
		WithPrometheusRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	assert.False(t, rt.Agent.IsReady())
	assert.Nil(t, rt.History)

	_, err = rt.Agent.ProcessTurn(context.Background(), make([]byte, 3200))
	assert.ErrorIs(t, err, agent.ErrNotInitialized)
}

func TestNewCompletesTurnWithBuiltinDetector(t *testing.T) {
	// No VAD provider registered: the runtime must fall back to the
	// built-in energy detector on the first turn.
	r := registry.New(zap.NewNop())
	backends := mocks.NewBackends()
	for _, p := range []registry.Provider{
		mocks.Provider("mock-stt", types.CapabilitySTT, 10, backends.STT),
		mocks.Provider("mock-llm", types.CapabilityLLM, 10, backends.LLM),
		mocks.Provider("mock-tts", types.CapabilityTTS, 10, backends.TTS),
	} {
		require.NoError(t, r.Register(p))
	}

	rt, err := New(
		WithConfig(*config.Default()),
		WithLogger(zap.NewNop()),
		WithRegistry(r),
		WithPrometheusRegisterer(prometheus.NewRegistry()),
		WithSTTModel("mock://whisper.onnx", "whisper-tiny", "Whisper Tiny"),
		WithLLMModel("mock://qwen.gguf", "qwen-0.5b", "Qwen 0.5B"),
		WithTTSVoice("mock://piper.onnx", "piper-amy", "Piper Amy"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	require.True(t, rt.Agent.IsReady())

	// A second of PCM16LE well above the energy threshold.
	audio := make([]byte, 32000)
	for i := 0; i < len(audio); i += 2 {
		audio[i+1] = 0x20
	}

	res, err := rt.Agent.ProcessTurn(context.Background(), audio)
	require.NoError(t, err)
	assert.True(t, res.SpeechDetected)
	assert.Equal(t, "Turning the lights on.", res.Response)
}

func TestNewFailsOnMissingModel(t *testing.T) {
	// Empty registry: resolving the STT backend must fail and surface
	// through New.
	r := registry.New(zap.NewNop())

	_, err := New(
		WithConfig(*config.Default()),
		WithLogger(zap.NewNop()),
		WithRegistry(r),
		WithPrometheusRegisterer(prometheus.NewRegistry()),
		WithSTTModel("mock://whisper.onnx", "whisper-tiny", "Whisper Tiny"),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stt")
}

func TestNewFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voiceflow.yaml")
	yaml := `
log:
  level: error
agent:
  system_prompt: "You are a helpful home assistant."
  generation_timeout: 10s
history:
  enabled: true
  path: ` + filepath.Join(dir, "history.db") + `
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	r := registry.New(zap.NewNop())
	require.NoError(t, mocks.NewBackends().Register(r))

	rt, err := New(
		WithConfigFile(path),
		WithLogger(zap.NewNop()),
		WithRegistry(r),
		WithPrometheusRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	assert.Equal(t, "You are a helpful home assistant.", rt.Config.Agent.SystemPrompt)
	assert.NotNil(t, rt.History)
}
