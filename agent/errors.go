package agent

import "errors"

var (
	// ErrNotInitialized is returned when a turn starts before all
	// required models are loaded.
	ErrNotInitialized = errors.New("agent: components not ready")

	// ErrTurnInProgress is returned when a turn is started while
	// another one is still running.
	ErrTurnInProgress = errors.New("agent: turn already in progress")

	// ErrCooldownActive is returned when the microphone cannot be
	// activated yet because the post-playback cooldown has not elapsed.
	ErrCooldownActive = errors.New("agent: cooldown after playback still active")

	// ErrGenerationTimeout is returned when the LLM stage exceeds the
	// configured generation timeout. The partial turn result carries
	// the transcription.
	ErrGenerationTimeout = errors.New("agent: generation timed out")

	// ErrSynthesisTimeout is returned when the TTS stage exceeds the
	// configured synthesis timeout. The partial turn result keeps the
	// generated response.
	ErrSynthesisTimeout = errors.New("agent: synthesis timed out")
)
