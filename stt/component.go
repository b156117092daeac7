package stt

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/voiceflow/lifecycle"
	"github.com/BaSui01/voiceflow/registry"
	"github.com/BaSui01/voiceflow/types"
)

// Component manages one STT backend through the shared lifecycle.
type Component struct {
	reg    *registry.Registry
	lc     *lifecycle.Manager
	logger *zap.Logger

	cfgMu sync.Mutex
	cfg   Config
}

// NewComponent creates an STT component. A nil registry means the
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
		logger: logger.Named("stt"),
		cfg:    DefaultConfig(),
	}
	c.lc, _ = lifecycle.NewManager("stt", c.create, c.destroy, lifecycle.Options{
		Logger:   logger,
		Observer: observer,
	})
	return c
}

func (c *Component) create(ctx context.Context, path, id string) (any, error) {
	cfg := c.config()
	req := &types.ServiceRequest{
		Identifier: id,
		Capability: types.CapabilitySTT,
		Framework:  cfg.PreferredFramework,
		ModelPath:  path,
		Config: map[string]any{
			"language":    cfg.Language,
			"sample_rate": cfg.SampleRate,
		},
	}
	handle, err := c.reg.Resolve(types.CapabilitySTT, req)
	if err != nil {
		return nil, err
	}
	backend, ok := handle.(Backend)
	if !ok {
		if closer, isCloser := handle.(io.Closer); isCloser {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("stt: provider handle %T does not implement stt.Backend", handle)
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

// Configure stores component-level settings and marks the component
// configured.
func (c *Component) Configure(cfg Config) error {
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.SampleRate < 8000 || cfg.SampleRate > 48000 {
		return fmt.Errorf("stt: sample rate %d out of range [8000, 48000]", cfg.SampleRate)
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

// LoadModel resolves and loads a transcription backend for the model
// at path. Loading the already-loaded path is a no-op.
func (c *Component) LoadModel(ctx context.Context, path, id, name string) error {
	_, err := c.lc.Load(ctx, path, id, name)
	return err
}

// DefaultOptions derives per-request options from the component config.
func (c *Component) DefaultOptions() Options {
	cfg := c.config()
	return Options{
		Language:          cfg.Language,
		SampleRate:        cfg.SampleRate,
		EnablePunctuation: cfg.EnablePunctuation,
		EnableTimestamps:  cfg.EnableTimestamps,
	}
}

// Transcribe converts a PCM16LE mono buffer to text. A nil opts uses
// the component defaults.
func (c *Component) Transcribe(ctx context.Context, audio []byte, opts *Options) (*Result, error) {
	if len(audio) == 0 {
		return nil, ErrNoAudio
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
	res, err := svc.(Backend).Transcribe(ctx, audio, o)
	if err != nil {
		return nil, fmt.Errorf("stt: transcribe: %w", err)
	}

	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.ProcessingTime == 0 {
		res.ProcessingTime = time.Since(start)
	}
	if res.ModelID == "" {
		res.ModelID = c.lc.ModelID()
	}
	if res.WordCount == 0 {
		res.WordCount = len(strings.Fields(res.Text))
	}
	if res.Language == "" {
		res.Language = o.Language
	}

	c.logger.Debug("transcription complete",
		zap.String("id", res.ID),
		zap.Int("words", res.WordCount),
		zap.Duration("elapsed", res.ProcessingTime))
	return res, nil
}

// Unload tears down the transcription backend.
func (c *Component) Unload() error { return c.lc.Unload() }

// Reset recovers the component from a failed load.
func (c *Component) Reset() error { return c.lc.Reset() }

// Destroy force-releases the backend regardless of state.
func (c *Component) Destroy() { c.lc.Cleanup() }

// State returns the lifecycle state.
func (c *Component) State() lifecycle.State { return c.lc.State() }

// IsReady reports whether a model is loaded.
func (c *Component) IsReady() bool { return c.lc.IsLoaded() }

// ModelID returns the id of the loaded model, empty when none.
func (c *Component) ModelID() string { return c.lc.ModelID() }

// Metrics returns the lifecycle counters.
func (c *Component) Metrics() lifecycle.Metrics { return c.lc.Metrics() }
