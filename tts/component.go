package tts

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/voiceflow/lifecycle"
	"github.com/BaSui01/voiceflow/registry"
	"github.com/BaSui01/voiceflow/types"
)

// Component manages one TTS backend through the shared lifecycle.
type Component struct {
	reg    *registry.Registry
	lc     *lifecycle.Manager
	logger *zap.Logger

	cfgMu sync.Mutex
	cfg   Config
}

// NewComponent creates a TTS component. A nil registry means the
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
		logger: logger.Named("tts"),
		cfg:    DefaultConfig(),
	}
	c.lc, _ = lifecycle.NewManager("tts", c.create, c.destroy, lifecycle.Options{
		Logger:   logger,
		Observer: observer,
	})
	return c
}

func (c *Component) create(ctx context.Context, path, id string) (any, error) {
	cfg := c.config()
	req := &types.ServiceRequest{
		Identifier: id,
		Capability: types.CapabilityTTS,
		Framework:  cfg.PreferredFramework,
		ModelPath:  path,
		Config: map[string]any{
			"voice":       cfg.Voice,
			"sample_rate": cfg.SampleRate,
		},
	}
	handle, err := c.reg.Resolve(types.CapabilityTTS, req)
	if err != nil {
		return nil, err
	}
	backend, ok := handle.(Backend)
	if !ok {
		if closer, isCloser := handle.(io.Closer); isCloser {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("tts: provider handle %T does not implement tts.Backend", handle)
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

// Configure stores component-level synthesis settings.
func (c *Component) Configure(cfg Config) error {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultConfig().SampleRate
	}
	if cfg.SpeakingRate == 0 {
		cfg.SpeakingRate = 1.0
	}
	if cfg.SpeakingRate < 0.25 || cfg.SpeakingRate > 4.0 {
		return fmt.Errorf("tts: speaking rate %f out of range [0.25, 4.0]", cfg.SpeakingRate)
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

// LoadVoice resolves and loads a synthesis backend for the voice model
// at path. Loading the already-loaded path is a no-op.
func (c *Component) LoadVoice(ctx context.Context, path, id, name string) error {
	_, err := c.lc.Load(ctx, path, id, name)
	return err
}

// DefaultOptions derives per-request options from the component config.
func (c *Component) DefaultOptions() Options {
	cfg := c.config()
	return Options{
		Voice:        cfg.Voice,
		SampleRate:   cfg.SampleRate,
		SpeakingRate: cfg.SpeakingRate,
	}
}

// Synthesize converts text to PCM16LE audio. A nil opts uses the
// component defaults.
func (c *Component) Synthesize(ctx context.Context, text string, opts *Options) (*Result, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	svc, err := c.lc.Service()
	if err != nil {
		return nil, err
	}

	o := c.DefaultOptions()
	if opts != nil {
		o = *opts
	}

	start := time.Now()
	res, err := svc.(Backend).Synthesize(ctx, text, o)
	if err != nil {
		return nil, fmt.Errorf("tts: synthesize: %w", err)
	}

	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.ProcessingTime == 0 {
		res.ProcessingTime = time.Since(start)
	}
	if res.SampleRate == 0 {
		res.SampleRate = o.SampleRate
	}
	if res.Channels == 0 {
		res.Channels = 1
	}
	if res.CharCount == 0 {
		res.CharCount = len(text)
	}
	if res.VoiceID == "" {
		res.VoiceID = c.lc.ModelID()
	}
	if res.Duration == 0 && res.SampleRate > 0 {
		samples := len(res.Audio) / (2 * res.Channels)
		res.Duration = time.Duration(float64(samples) / float64(res.SampleRate) * float64(time.Second))
	}

	c.logger.Debug("synthesis complete",
		zap.String("id", res.ID),
		zap.Int("audio_bytes", len(res.Audio)),
		zap.Duration("audio_duration", res.Duration),
		zap.Duration("elapsed", res.ProcessingTime))
	return res, nil
}

// Unload tears down the synthesis backend.
func (c *Component) Unload() error { return c.lc.Unload() }

// Reset recovers the component from a failed load.
func (c *Component) Reset() error { return c.lc.Reset() }

// Destroy force-releases the backend regardless of state.
func (c *Component) Destroy() { c.lc.Cleanup() }

// State returns the lifecycle state.
func (c *Component) State() lifecycle.State { return c.lc.State() }

// IsReady reports whether a voice is loaded.
func (c *Component) IsReady() bool { return c.lc.IsLoaded() }

// VoiceID returns the id of the loaded voice, empty when none.
func (c *Component) VoiceID() string { return c.lc.ModelID() }

// Metrics returns the lifecycle counters.
func (c *Component) Metrics() lifecycle.Metrics { return c.lc.Metrics() }
