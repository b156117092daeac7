package llm

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

// Component manages one LLM backend through the shared lifecycle.
type Component struct {
	reg    *registry.Registry
	lc     *lifecycle.Manager
	logger *zap.Logger

	cfgMu   sync.Mutex
	cfg     Config
	counter tokenCounter
}

// NewComponent creates an LLM component. A nil registry means the
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
		logger: logger.Named("llm"),
		cfg:    DefaultConfig(),
	}
	c.lc, _ = lifecycle.NewManager("llm", c.create, c.destroy, lifecycle.Options{
		Logger:   logger,
		Observer: observer,
	})
	return c
}

func (c *Component) create(ctx context.Context, path, id string) (any, error) {
	cfg := c.config()
	req := &types.ServiceRequest{
		Identifier: id,
		Capability: types.CapabilityLLM,
		Framework:  cfg.PreferredFramework,
		ModelPath:  path,
		Config: map[string]any{
			"context_length": cfg.ContextLength,
			"max_tokens":     cfg.MaxTokens,
		},
	}
	handle, err := c.reg.Resolve(types.CapabilityLLM, req)
	if err != nil {
		return nil, err
	}
	backend, ok := handle.(Backend)
	if !ok {
		if closer, isCloser := handle.(io.Closer); isCloser {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("llm: provider handle %T does not implement llm.Backend", handle)
	}

	c.cfgMu.Lock()
	c.counter = newTokenCounter(id)
	c.cfgMu.Unlock()
	return backend, nil
}

func (c *Component) destroy(svc any) {
	if backend, ok := svc.(Backend); ok {
		if err := backend.Close(); err != nil {
			c.logger.Warn("backend close failed", zap.Error(err))
		}
	}
}

// Configure stores component-level generation settings.
func (c *Component) Configure(cfg Config) error {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return fmt.Errorf("llm: temperature %f out of range [0, 2]", cfg.Temperature)
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

// LoadModel resolves and loads a generation backend for the model at
// path. Loading the already-loaded path is a no-op.
func (c *Component) LoadModel(ctx context.Context, path, id, name string) error {
	_, err := c.lc.Load(ctx, path, id, name)
	return err
}

// DefaultOptions derives per-request options from the component config.
func (c *Component) DefaultOptions() Options {
	cfg := c.config()
	return Options{
		SystemPrompt: cfg.SystemPrompt,
		MaxTokens:    cfg.MaxTokens,
		Temperature:  cfg.Temperature,
		TopP:         cfg.TopP,
	}
}

// Generate produces a completion for the prompt. A nil opts uses the
// component defaults. Token usage is filled from the backend when it
// reports it, otherwise estimated.
func (c *Component) Generate(ctx context.Context, prompt string, opts *Options) (*Result, error) {
	if prompt == "" {
		return nil, ErrEmptyPrompt
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
	res, err := svc.(Backend).Generate(ctx, prompt, o)
	if err != nil {
		return nil, fmt.Errorf("llm: generate: %w", err)
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
	c.fillUsage(res, prompt, o.SystemPrompt)
	if res.TokensPerSecond == 0 && res.ProcessingTime > 0 {
		res.TokensPerSecond = float64(res.CompletionTokens) / res.ProcessingTime.Seconds()
	}

	c.logger.Debug("generation complete",
		zap.String("id", res.ID),
		zap.Int("completion_tokens", res.CompletionTokens),
		zap.Duration("elapsed", res.ProcessingTime))
	return res, nil
}

func (c *Component) fillUsage(res *Result, prompt, systemPrompt string) {
	c.cfgMu.Lock()
	counter := c.counter
	c.cfgMu.Unlock()
	if counter == nil {
		counter = estimatorCounter{}
	}

	if res.PromptTokens == 0 {
		res.PromptTokens = counter.Count(systemPrompt) + counter.Count(prompt)
	}
	if res.CompletionTokens == 0 {
		res.CompletionTokens = counter.Count(res.Text)
	}
	if res.TotalTokens == 0 {
		res.TotalTokens = res.PromptTokens + res.CompletionTokens
	}
}

// Cancel asks the live backend to stop generating. It is a no-op when
// nothing is loaded or generating.
func (c *Component) Cancel() {
	if svc, err := c.lc.Service(); err == nil {
		svc.(Backend).Cancel()
	}
}

// Unload tears down the generation backend.
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
