package vad

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/voiceflow/lifecycle"
	"github.com/BaSui01/voiceflow/registry"
	"github.com/BaSui01/voiceflow/types"
)

func newTestComponent(t *testing.T) *Component {
	t.Helper()
	r := registry.New(nil)
	require.NoError(t, r.Register(EnergyProvider()))
	return NewComponent(r, nil, nil)
}

func TestComponentLoadDefault(t *testing.T) {
	c := newTestComponent(t)

	require.NoError(t, c.LoadDefault(context.Background()))
	assert.Equal(t, lifecycle.StateReady, c.State())
	assert.True(t, c.IsReady())
	assert.Equal(t, "energy-vad", c.ModelID())
}

func TestComponentDetect(t *testing.T) {
	c := newTestComponent(t)
	require.NoError(t, c.LoadDefault(context.Background()))

	cfg := DefaultConfig()
	res, err := c.Detect(context.Background(), sinePCM(time.Second, cfg.SampleRate, 0.3))
	require.NoError(t, err)
	assert.True(t, res.SpeechDetected)

	c.ResetDetector()

	res, err = c.Detect(context.Background(), silencePCM(time.Second, cfg.SampleRate))
	require.NoError(t, err)
	assert.False(t, res.SpeechDetected)
}

func TestComponentDetectBeforeLoad(t *testing.T) {
	c := newTestComponent(t)
	_, err := c.Detect(context.Background(), silencePCM(time.Second, 16000))
	assert.ErrorIs(t, err, lifecycle.ErrNotReady)
}

func TestComponentDetectEmptyBuffer(t *testing.T) {
	c := newTestComponent(t)
	require.NoError(t, c.LoadDefault(context.Background()))
	_, err := c.Detect(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestComponentConfigureRejectsInvalid(t *testing.T) {
	c := newTestComponent(t)
	cfg := DefaultConfig()
	cfg.SampleRate = 100
	assert.Error(t, c.Configure(cfg))
}

func TestComponentHigherPriorityProviderWins(t *testing.T) {
	r := registry.New(nil)
	require.NoError(t, r.Register(EnergyProvider()))

	// A model-backed provider at a higher priority must outrank the
	// built-in detector for the same request.
	custom := NewEnergyBackend(DefaultConfig())
	require.NoError(t, r.Register(registry.Provider{
		Name:       "neural-vad",
		Capability: types.CapabilityVAD,
		Priority:   10,
		CanHandle:  func(*types.ServiceRequest) bool { return true },
		Create:     func(*types.ServiceRequest) (any, error) { return custom, nil },
	}))

	c := NewComponent(r, nil, nil)
	require.NoError(t, c.LoadDefault(context.Background()))
	assert.True(t, c.IsReady())

	svc, err := c.lc.Service()
	require.NoError(t, err)
	assert.Same(t, custom, svc)
}

func TestComponentUnload(t *testing.T) {
	c := newTestComponent(t)
	require.NoError(t, c.LoadDefault(context.Background()))

	require.NoError(t, c.Unload())
	assert.Equal(t, lifecycle.StateUninitialized, c.State())
	assert.False(t, c.IsReady())
}

func TestComponentNonBackendHandleFailsLoad(t *testing.T) {
	r := registry.New(nil)
	require.NoError(t, r.Register(registry.Provider{
		Name:       "bogus",
		Capability: types.CapabilityVAD,
		Priority:   1,
		CanHandle:  func(*types.ServiceRequest) bool { return true },
		Create:     func(*types.ServiceRequest) (any, error) { return "not a backend", nil },
	}))

	c := NewComponent(r, nil, nil)
	require.NoError(t, c.Configure(DefaultConfig()))
	err := c.Load(context.Background(), "/models/x.onnx", "x", "")
	require.Error(t, err)
	assert.Equal(t, lifecycle.StateFailed, c.State())
}
