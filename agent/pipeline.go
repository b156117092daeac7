package agent

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PipelineState is the audio pipeline's coarse state, tracked per
// agent so the caller knows when the microphone may open and when
// playback is expected.
type PipelineState string

const (
	PipelineIdle               PipelineState = "idle"
	PipelineListening          PipelineState = "listening"
	PipelineProcessingSpeech   PipelineState = "processing_speech"
	PipelineGeneratingResponse PipelineState = "generating_response"
	PipelinePlayingTTS         PipelineState = "playing_tts"
	PipelineCooldown           PipelineState = "cooldown"
	PipelineError              PipelineState = "error"
)

// pipelineTransitions defines the legal transitions. Any state may
// additionally fail into PipelineError; see CanTransitionPipeline.
var pipelineTransitions = map[PipelineState][]PipelineState{
	PipelineIdle:               {PipelineListening, PipelineCooldown},
	PipelineListening:          {PipelineIdle, PipelineProcessingSpeech},
	PipelineProcessingSpeech:   {PipelineIdle, PipelineGeneratingResponse, PipelineListening},
	PipelineGeneratingResponse: {PipelinePlayingTTS, PipelineIdle, PipelineCooldown},
	PipelinePlayingTTS:         {PipelineCooldown, PipelineIdle},
	PipelineCooldown:           {PipelineIdle},
	PipelineError:              {PipelineIdle},
}

// CanTransitionPipeline reports whether from -> to is legal. Entering
// the error state is legal from everywhere; leaving it requires an
// explicit reset to idle.
func CanTransitionPipeline(from, to PipelineState) bool {
	if to == PipelineError {
		return true
	}
	allowed, ok := pipelineTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ErrInvalidPipelineTransition reports an illegal pipeline transition.
// The pipeline state is unchanged when it is returned.
type ErrInvalidPipelineTransition struct {
	From PipelineState
	To   PipelineState
}

func (e ErrInvalidPipelineTransition) Error() string {
	return fmt.Sprintf("agent: invalid pipeline transition: %s -> %s", e.From, e.To)
}

// CanActivateMicrophone reports whether the microphone may open: the
// pipeline must be idle or already listening, and the cooldown since
// the last TTS playback must have fully elapsed. The boundary is
// inclusive: exactly cooldown after playback the microphone is allowed.
func CanActivateMicrophone(state PipelineState, lastTTSEnd time.Time, cooldown time.Duration, now time.Time) bool {
	if state != PipelineIdle && state != PipelineListening {
		return false
	}
	return now.Sub(lastTTSEnd) >= cooldown
}

// CanPlayTTS reports whether playback may start. Playback is allowed
// while processing speech as well as while generating, so responses
// synthesized from intermediate results can start early.
func CanPlayTTS(state PipelineState) bool {
	return state == PipelineProcessingSpeech || state == PipelineGeneratingResponse
}

// DefaultCooldown is the post-playback microphone gate, long enough
// for echo from the device speaker to die down.
const DefaultCooldown = 800 * time.Millisecond

// Pipeline tracks the audio pipeline state for one agent. All methods
// are safe for concurrent use. The clock is injectable for tests.
type Pipeline struct {
	mu           sync.Mutex
	state        PipelineState
	lastTTSEnd   time.Time
	cooldown     time.Duration
	now          func() time.Time
	logger       *zap.Logger
	onTransition func(from, to PipelineState)
}

// NewPipeline creates an idle pipeline with the given cooldown.
// A non-positive cooldown falls back to DefaultCooldown.
func NewPipeline(cooldown time.Duration, logger *zap.Logger) *Pipeline {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		state:    PipelineIdle,
		cooldown: cooldown,
		now:      time.Now,
		logger:   logger.Named("pipeline"),
	}
}

// transition must be called with mu held.
func (p *Pipeline) transition(to PipelineState) error {
	if !CanTransitionPipeline(p.state, to) {
		return ErrInvalidPipelineTransition{From: p.state, To: to}
	}
	from := p.state
	p.state = to
	p.logger.Debug("pipeline transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	if p.onTransition != nil {
		p.onTransition(from, to)
	}
	return nil
}

// BeginListening opens the microphone gate. An elapsed cooldown state
// resolves to idle first; an unelapsed one returns ErrCooldownActive.
// Already listening is a no-op.
func (p *Pipeline) BeginListening() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.state == PipelineCooldown {
		if now.Sub(p.lastTTSEnd) < p.cooldown {
			return ErrCooldownActive
		}
		if err := p.transition(PipelineIdle); err != nil {
			return err
		}
	}
	if p.state == PipelineListening {
		return nil
	}
	if !CanActivateMicrophone(p.state, p.lastTTSEnd, p.cooldown, now) {
		if p.state == PipelineIdle {
			return ErrCooldownActive
		}
		return ErrInvalidPipelineTransition{From: p.state, To: PipelineListening}
	}
	return p.transition(PipelineListening)
}

// StartProcessing moves listening -> processing_speech once speech has
// been detected.
func (p *Pipeline) StartProcessing() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transition(PipelineProcessingSpeech)
}

// StartGeneration moves processing_speech -> generating_response.
func (p *Pipeline) StartGeneration() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transition(PipelineGeneratingResponse)
}

// StartPlayback moves into playing_tts. It is gated by CanPlayTTS;
// starting from processing_speech passes through generating_response.
func (p *Pipeline) StartPlayback() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !CanPlayTTS(p.state) {
		return ErrInvalidPipelineTransition{From: p.state, To: PipelinePlayingTTS}
	}
	if p.state == PipelineProcessingSpeech {
		if err := p.transition(PipelineGeneratingResponse); err != nil {
			return err
		}
	}
	return p.transition(PipelinePlayingTTS)
}

// CompletePlayback marks the end of TTS playback, stamping the
// cooldown start.
func (p *Pipeline) CompletePlayback() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.transition(PipelineCooldown); err != nil {
		return err
	}
	p.lastTTSEnd = p.now()
	return nil
}

// FinishTurn returns the pipeline to idle from any in-turn state. It
// is a no-op when already idle and illegal from the error state.
func (p *Pipeline) FinishTurn() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == PipelineIdle {
		return nil
	}
	return p.transition(PipelineIdle)
}

// Fail forces the pipeline into the error state. Recovery requires an
// explicit Reset.
func (p *Pipeline) Fail() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.transition(PipelineError)
}

// Reset recovers the pipeline from the error state back to idle.
func (p *Pipeline) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != PipelineError {
		return ErrInvalidPipelineTransition{From: p.state, To: PipelineIdle}
	}
	return p.transition(PipelineIdle)
}

// State returns the current pipeline state.
func (p *Pipeline) State() PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CanListen reports whether a new turn could start right now.
func (p *Pipeline) CanListen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.state
	if state == PipelineCooldown && p.now().Sub(p.lastTTSEnd) >= p.cooldown {
		state = PipelineIdle
	}
	return CanActivateMicrophone(state, p.lastTTSEnd, p.cooldown, p.now())
}

// CooldownRemaining returns how long until the microphone gate opens,
// zero when it is already open.
func (p *Pipeline) CooldownRemaining() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	remaining := p.cooldown - p.now().Sub(p.lastTTSEnd)
	if remaining < 0 {
		return 0
	}
	return remaining
}
