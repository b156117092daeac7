package vad

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/voiceflow/lifecycle"
	"github.com/BaSui01/voiceflow/registry"
	"github.com/BaSui01/voiceflow/types"
)

// Component manages one VAD backend through the shared lifecycle. The
// backend is resolved through the service registry on load.
type Component struct {
	reg    *registry.Registry
	lc     *lifecycle.Manager
	logger *zap.Logger

	cfgMu sync.Mutex
	cfg   Config
}

// NewComponent creates a VAD component. A nil registry means the
// process-wide default; a nil logger means no logging.
func NewComponent(reg *registry.Registry, logger *zap.Logger, observer lifecycle.Observer) *Component {
	if reg == nil {
		reg = registry.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Component{
		reg:    reg,
		logger: logger.Named("vad"),
		cfg:    DefaultConfig(),
	}
	// NewManager only fails on a nil create func.
	c.lc, _ = lifecycle.NewManager("vad", c.create, c.destroy, lifecycle.Options{
		Logger:   logger,
		Observer: observer,
	})
	return c
}

func (c *Component) create(ctx context.Context, path, id string) (any, error) {
	cfg := c.config()
	req := &types.ServiceRequest{
		Identifier: id,
		Capability: types.CapabilityVAD,
		Framework:  cfg.PreferredFramework,
		ModelPath:  path,
		Config: map[string]any{
			"sample_rate":        cfg.SampleRate,
			"frame_duration":     cfg.FrameDuration,
			"energy_threshold":   cfg.EnergyThreshold,
			"voice_start_frames": cfg.VoiceStartFrames,
			"voice_end_frames":   cfg.VoiceEndFrames,
		},
	}
	handle, err := c.reg.Resolve(types.CapabilityVAD, req)
	if err != nil {
		return nil, err
	}
	backend, ok := handle.(Backend)
	if !ok {
		if closer, isCloser := handle.(io.Closer); isCloser {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("vad: provider handle %T does not implement vad.Backend", handle)
	}
	return backend, nil
}

func (c *Component) destroy(svc any) {
	if backend, ok := svc.(Backend); ok {
		if err := backend.Close(); err != nil {
			c.logger.Warn("backend close failed", zap.Error(err))
		}
	}
}

// Configure validates and stores the detection parameters and marks
// the component configured.
func (c *Component) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfgMu.Lock()
	c.cfg = cfg
	c.cfgMu.Unlock()
	return c.lc.Configure()
}

func (c *Component) config() Config {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	return c.cfg
}

// Load resolves and loads a detector backend for the given model path.
func (c *Component) Load(ctx context.Context, path, id, name string) error {
	_, err := c.lc.Load(ctx, path, id, name)
	return err
}

// LoadDefault configures the component with its current parameters if
// needed and loads the built-in energy detector.
func (c *Component) LoadDefault(ctx context.Context) error {
	if c.lc.State() == lifecycle.StateUninitialized {
		if err := c.Configure(c.config()); err != nil {
			return err
		}
	}
	return c.Load(ctx, BuiltinEnergyPath, "energy-vad", "Energy VAD")
}

// Detect runs speech detection on a PCM16LE mono buffer.
func (c *Component) Detect(ctx context.Context, pcm []byte) (*Result, error) {
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}
	svc, err := c.lc.Service()
	if err != nil {
		return nil, err
	}
	res, err := svc.(Backend).DetectSpeech(ctx, pcm)
	if err != nil {
		return nil, fmt.Errorf("vad: detect: %w", err)
	}
	c.logger.Debug("speech detection complete",
		zap.Bool("speech", res.SpeechDetected),
		zap.Float64("peak_energy", res.PeakEnergy),
		zap.Int("frames", res.TotalFrames))
	return res, nil
}

// ResetDetector clears the backend's hangover state between
// utterances. It is a no-op when no backend is loaded.
func (c *Component) ResetDetector() {
	if svc, err := c.lc.Service(); err == nil {
		svc.(Backend).Reset()
	}
}

// Unload tears down the detector backend.
func (c *Component) Unload() error { return c.lc.Unload() }

// Reset recovers the component from a failed load.
func (c *Component) Reset() error { return c.lc.Reset() }

// Destroy force-releases the backend regardless of state.
func (c *Component) Destroy() { c.lc.Cleanup() }

// State returns the lifecycle state.
func (c *Component) State() lifecycle.State { return c.lc.State() }

// IsReady reports whether a detector is loaded.
func (c *Component) IsReady() bool { return c.lc.IsLoaded() }

// ModelID returns the id of the loaded detector, empty when none.
func (c *Component) ModelID() string { return c.lc.ModelID() }

// Metrics returns the lifecycle counters.
func (c *Component) Metrics() lifecycle.Metrics { return c.lc.Metrics() }
