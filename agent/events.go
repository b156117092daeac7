package agent

// EventType identifies a streaming turn event.
type EventType string

const (
	// EventSpeech reports the VAD verdict for the input buffer.
	EventSpeech EventType = "speech"
	// EventTranscription carries the recognized text.
	EventTranscription EventType = "transcription"
	// EventResponse carries the generated response text.
	EventResponse EventType = "response"
	// EventAudio carries the synthesized PCM audio.
	EventAudio EventType = "audio"
	// EventCompleted closes a successful turn with the full result.
	EventCompleted EventType = "completed"
	// EventError closes a failed turn.
	EventError EventType = "error"
)

// Event is one step of a streaming turn. Events for a turn arrive in
// stage order and end with either EventCompleted or EventError.
type Event struct {
	Type           EventType
	TurnID         string
	SpeechDetected bool
	Text           string // transcription or response, per Type
	Audio          []byte
	SampleRate     int
	Result         *TurnResult // set on EventCompleted
	Err            error       // set on EventError
}

// EventHandler receives turn events. Handlers run synchronously on the
// turn's goroutine; slow handlers delay the turn.
type EventHandler func(Event)
