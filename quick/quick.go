// Package quick provides a convenience entry point that assembles a
// ready-to-use voice agent runtime with minimal boilerplate: logger,
// metrics, telemetry, turn history, and the agent itself.
//
// The package lives under quick/ (not root) so the root package can
// stay a thin re-export layer.
//
// Usage:
//
//	import "github.com/BaSui01/voiceflow/quick"
//
//	rt, err := quick.New(
//		quick.WithSTTModel("models/whisper-tiny.onnx", "whisper-tiny", "Whisper Tiny"),
//		quick.WithLLMModel("models/qwen-0.5b.gguf", "qwen-0.5b", "Qwen 0.5B"),
//		quick.WithTTSVoice("models/piper-amy.onnx", "piper-amy", "Piper Amy"),
//	)
package quick

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/voiceflow/agent"
	"github.com/BaSui01/voiceflow/config"
	"github.com/BaSui01/voiceflow/history"
	"github.com/BaSui01/voiceflow/internal/metrics"
	"github.com/BaSui01/voiceflow/internal/telemetry"
	"github.com/BaSui01/voiceflow/registry"
)

type modelRef struct {
	path, id, name string
}

// Option configures the runtime created by New.
type Option func(*options)

type options struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	reg        *registry.Registry
	promReg    prometheus.Registerer

	sttModel *modelRef
	llmModel *modelRef
	ttsVoice *modelRef
}

// WithConfig uses an already loaded configuration.
func WithConfig(cfg config.Config) Option {
	return func(o *options) { o.cfg = &cfg }
}

// WithConfigFile loads configuration from a YAML file, applying
// environment overrides on top.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithLogger sets a custom zap logger. Defaults to one built from the
// log configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegistry sets the provider registry to resolve backends from.
// Defaults to the process-wide registry.
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) { o.reg = r }
}

// WithPrometheusRegisterer sets where runtime metrics are registered.
// Defaults to the global Prometheus registerer.
func WithPrometheusRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.promReg = reg }
}

// WithSTTModel loads the given transcription model during New.
func WithSTTModel(path, id, name string) Option {
	return func(o *options) { o.sttModel = &modelRef{path, id, name} }
}

// WithLLMModel loads the given generation model during New.
func WithLLMModel(path, id, name string) Option {
	return func(o *options) { o.llmModel = &modelRef{path, id, name} }
}

// WithTTSVoice loads the given synthesis voice during New.
func WithTTSVoice(path, id, name string) Option {
	return func(o *options) { o.ttsVoice = &modelRef{path, id, name} }
}

// Runtime bundles the assembled agent with its supporting pieces.
type Runtime struct {
	Agent   *agent.Agent
	Config  config.Config
	Logger  *zap.Logger
	History *history.Store

	telemetry *telemetry.Providers
}

// New assembles a voice agent runtime: configuration, logger, metrics,
// telemetry, turn history, and an agent owning its four components.
// Models given via WithSTTModel, WithLLMModel, and WithTTSVoice are
// loaded before New returns.
func New(opts ...Option) (*Runtime, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var cfg config.Config
	switch {
	case o.cfg != nil:
		cfg = *o.cfg
	case o.configPath != "":
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("quick: load config: %w", err)
		}
		cfg = *loaded
	default:
		cfg = *config.Default()
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = config.BuildLogger(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("quick: build logger: %w", err)
		}
	}

	tel, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("telemetry init failed, continuing without", zap.Error(err))
	}

	var agentOpts []agent.Option
	if cfg.Metrics.Enabled {
		promReg := o.promReg
		if promReg == nil {
			promReg = prometheus.DefaultRegisterer
		}
		collector := metrics.NewCollector(cfg.Metrics.Namespace, promReg, logger)
		agentOpts = append(agentOpts, agent.WithMetrics(collector))
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("quick: open history: %w", err)
		}
		agentOpts = append(agentOpts, agent.WithHistory(store))
	}

	agentCfg := agent.Config{
		SystemPrompt:      cfg.Agent.SystemPrompt,
		MaxTokens:         cfg.Agent.MaxTokens,
		Temperature:       cfg.Agent.Temperature,
		GenerationTimeout: cfg.Agent.GenerationTimeout.Std(),
		SynthesisTimeout:  cfg.Agent.SynthesisTimeout.Std(),
		Cooldown:          cfg.Agent.Cooldown.Std(),
	}

	a, err := agent.NewStandalone(o.reg, agentCfg, logger, agentOpts...)
	if err != nil {
		return nil, fmt.Errorf("quick: create agent: %w", err)
	}

	ctx := context.Background()
	if o.sttModel != nil {
		if err := a.LoadSTTModel(ctx, o.sttModel.path, o.sttModel.id, o.sttModel.name); err != nil {
			return nil, fmt.Errorf("quick: load stt model: %w", err)
		}
	}
	if o.llmModel != nil {
		if err := a.LoadLLMModel(ctx, o.llmModel.path, o.llmModel.id, o.llmModel.name); err != nil {
			return nil, fmt.Errorf("quick: load llm model: %w", err)
		}
	}
	if o.ttsVoice != nil {
		if err := a.LoadTTSVoice(ctx, o.ttsVoice.path, o.ttsVoice.id, o.ttsVoice.name); err != nil {
			return nil, fmt.Errorf("quick: load tts voice: %w", err)
		}
	}

	return &Runtime{
		Agent:     a,
		Config:    cfg,
		Logger:    logger,
		History:   store,
		telemetry: tel,
	}, nil
}

// Close releases the agent's backends, the history store, and the
// telemetry providers.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if err := rt.Agent.Cleanup(); err != nil {
		errs = append(errs, err)
	}
	if rt.History != nil {
		if err := rt.History.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.telemetry != nil {
		if err := rt.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
