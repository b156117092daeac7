// Package agent composes the VAD, STT, LLM, and TTS components into a
// voice agent: one ProcessTurn call takes a recorded utterance through
// detection, transcription, generation, and synthesis, with an audio
// pipeline state machine gating microphone and playback.
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/voiceflow/lifecycle"
	"github.com/BaSui01/voiceflow/llm"
	"github.com/BaSui01/voiceflow/registry"
	"github.com/BaSui01/voiceflow/stt"
	"github.com/BaSui01/voiceflow/tts"
	"github.com/BaSui01/voiceflow/vad"
)

// Config holds turn-orchestration settings.
type Config struct {
	SystemPrompt      string
	MaxTokens         int
	Temperature       float32
	GenerationTimeout time.Duration
	SynthesisTimeout  time.Duration
	Cooldown          time.Duration
}

// DefaultConfig returns the orchestration defaults: 30s generation
// budget, 15s synthesis budget, 800ms post-playback cooldown.
func DefaultConfig() Config {
	return Config{
		MaxTokens:         256,
		Temperature:       0.7,
		GenerationTimeout: 30 * time.Second,
		SynthesisTimeout:  15 * time.Second,
		Cooldown:          DefaultCooldown,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = d.GenerationTimeout
	}
	if c.SynthesisTimeout <= 0 {
		c.SynthesisTimeout = d.SynthesisTimeout
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
}

// MetricsRecorder receives turn-level metrics. The internal Prometheus
// collector satisfies it.
type MetricsRecorder interface {
	RecordTurn(status string, d time.Duration)
	RecordStage(stage string, d time.Duration, err error)
	RecordPipelineTransition(from, to string)
}

// TurnRecord is the persisted summary of one turn.
type TurnRecord struct {
	TurnID         string
	SpeechDetected bool
	Transcription  string
	Response       string
	AudioBytes     int
	Status         string
	Error          string
	VADTime        time.Duration
	STTTime        time.Duration
	LLMTime        time.Duration
	TTSTime        time.Duration
	TotalTime      time.Duration
	CreatedAt      time.Time
}

// TurnRecorder persists completed turns, e.g. to the history store.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, rec TurnRecord) error
}

// TurnTimings carries per-stage wall-clock durations.
type TurnTimings struct {
	VAD   time.Duration
	STT   time.Duration
	LLM   time.Duration
	TTS   time.Duration
	Total time.Duration
}

// TurnResult is the outcome of one conversation turn. On stage errors
// it is still returned with every field produced so far filled in.
type TurnResult struct {
	TurnID           string
	SpeechDetected   bool
	Transcription    string
	Response         string
	SynthesizedAudio []byte
	SampleRate       int
	Timings          TurnTimings
}

// Agent orchestrates one voice conversation: VAD gate, then strictly
// sequential STT -> LLM -> TTS.
type Agent struct {
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer

	vad *vad.Component
	stt *stt.Component
	llm *llm.Component
	tts *tts.Component

	// owns marks components created by NewStandalone; only those are
	// destroyed when the agent is destroyed.
	owns bool

	pipeline *Pipeline
	metrics  MetricsRecorder
	history  TurnRecorder

	turnMu chan struct{} // 1-slot semaphore; TryLock semantics

	lastMu   sync.Mutex
	lastTurn *TurnResult
}

// Option customizes an Agent.
type Option func(*Agent)

// WithMetrics attaches a metrics recorder. When the recorder also
// implements lifecycle.Observer (the internal collector does), it is
// wired to component load/unload events in NewStandalone.
func WithMetrics(m MetricsRecorder) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithHistory attaches a turn recorder that persists completed turns.
func WithHistory(h TurnRecorder) Option {
	return func(a *Agent) { a.history = h }
}

// WithClock overrides the pipeline clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.pipeline.now = now }
}

func newAgent(cfg Config, logger *zap.Logger, opts ...Option) *Agent {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Agent{
		cfg:      cfg,
		logger:   logger.Named("agent"),
		tracer:   otel.Tracer("github.com/BaSui01/voiceflow/agent"),
		pipeline: NewPipeline(cfg.Cooldown, logger),
		turnMu:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics != nil {
		a.pipeline.onTransition = func(from, to PipelineState) {
			a.metrics.RecordPipelineTransition(string(from), string(to))
		}
	}
	return a
}

// NewStandalone creates an agent that owns its four components, all
// resolving through reg (nil means the process-wide default registry).
// The built-in energy detector is registered at priority 0 so speech
// detection works out of the box; any model-backed detector outranks it.
func NewStandalone(reg *registry.Registry, cfg Config, logger *zap.Logger, opts ...Option) (*Agent, error) {
	if reg == nil {
		reg = registry.Default()
	}
	if err := reg.Register(vad.EnergyProvider()); err != nil {
		return nil, err
	}
	a := newAgent(cfg, logger, opts...)

	var observer lifecycle.Observer
	if obs, ok := a.metrics.(lifecycle.Observer); ok {
		observer = obs
	}

	a.vad = vad.NewComponent(reg, logger, observer)
	a.stt = stt.NewComponent(reg, logger, observer)
	a.llm = llm.NewComponent(reg, logger, observer)
	a.tts = tts.NewComponent(reg, logger, observer)
	a.owns = true

	llmCfg := llm.DefaultConfig()
	llmCfg.SystemPrompt = cfg.SystemPrompt
	llmCfg.MaxTokens = cfg.MaxTokens
	llmCfg.Temperature = cfg.Temperature
	if err := a.llm.Configure(llmCfg); err != nil {
		return nil, err
	}
	if err := a.stt.Configure(stt.DefaultConfig()); err != nil {
		return nil, err
	}
	if err := a.tts.Configure(tts.DefaultConfig()); err != nil {
		return nil, err
	}
	return a, nil
}

// New creates an agent over externally owned components. All four are
// required; the caller keeps responsibility for their destruction.
func New(v *vad.Component, s *stt.Component, l *llm.Component, t *tts.Component, cfg Config, logger *zap.Logger, opts ...Option) (*Agent, error) {
	if v == nil || s == nil || l == nil || t == nil {
		return nil, errors.New("agent: all four components are required")
	}
	a := newAgent(cfg, logger, opts...)
	a.vad, a.stt, a.llm, a.tts = v, s, l, t
	return a, nil
}

// LoadSTTModel loads the transcription model. Loading the same path
// again is a no-op.
func (a *Agent) LoadSTTModel(ctx context.Context, path, id, name string) error {
	return a.stt.LoadModel(ctx, path, id, name)
}

// LoadLLMModel loads the generation model.
func (a *Agent) LoadLLMModel(ctx context.Context, path, id, name string) error {
	return a.llm.LoadModel(ctx, path, id, name)
}

// LoadTTSVoice loads the synthesis voice.
func (a *Agent) LoadTTSVoice(ctx context.Context, path, id, name string) error {
	return a.tts.LoadVoice(ctx, path, id, name)
}

// IsReady reports whether STT, LLM, and TTS models are all loaded.
// The VAD component is created lazily on the first turn when needed.
func (a *Agent) IsReady() bool {
	return a.stt.IsReady() && a.llm.IsReady() && a.tts.IsReady()
}

// PipelineState returns the audio pipeline state.
func (a *Agent) PipelineState() PipelineState { return a.pipeline.State() }

// LastTurn returns the result of the most recent turn, nil before the
// first one. Failed turns are included with whatever they produced.
func (a *Agent) LastTurn() *TurnResult {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	return a.lastTurn
}

func (a *Agent) setLastTurn(res *TurnResult) {
	a.lastMu.Lock()
	a.lastTurn = res
	a.lastMu.Unlock()
}

// CompletePlayback signals that the caller finished playing the
// synthesized audio, starting the cooldown window.
func (a *Agent) CompletePlayback() error { return a.pipeline.CompletePlayback() }

// ResetPipeline recovers the pipeline from the error state.
func (a *Agent) ResetPipeline() error { return a.pipeline.Reset() }

// Cancel asks the LLM backend to stop the in-flight generation. It is
// cooperative and best-effort.
func (a *Agent) Cancel() {
	a.llm.Cancel()
	a.logger.Info("generation cancel requested")
}

// Cleanup unloads every owned component's backend. External components
// are left to their owner.
func (a *Agent) Cleanup() error {
	if !a.owns {
		return nil
	}
	var errs []error
	for _, unload := range []func() error{a.vad.Unload, a.stt.Unload, a.llm.Unload, a.tts.Unload} {
		if err := unload(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Destroy force-releases owned components regardless of their state
// and leaves the pipeline idle. The agent must not be used afterwards.
func (a *Agent) Destroy() {
	if a.owns {
		a.vad.Destroy()
		a.stt.Destroy()
		a.llm.Destroy()
		a.tts.Destroy()
	}
	_ = a.pipeline.FinishTurn()
	a.logger.Info("agent destroyed", zap.Bool("owned_components", a.owns))
}

// ensureVAD lazily configures and loads the detector before the first
// turn, defaulting to the built-in energy backend.
func (a *Agent) ensureVAD(ctx context.Context) error {
	if a.vad.IsReady() {
		return nil
	}
	return a.vad.LoadDefault(ctx)
}

func (a *Agent) tryBeginTurn() bool {
	select {
	case a.turnMu <- struct{}{}:
		return true
	default:
		return false
	}
}

func (a *Agent) endTurn() { <-a.turnMu }
