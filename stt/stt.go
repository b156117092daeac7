// Package stt provides speech-to-text: a lifecycle-managed component
// that resolves a transcription backend through the service registry.
package stt

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/voiceflow/types"
)

// ErrNoAudio is returned when transcription is attempted on an empty buffer.
var ErrNoAudio = errors.New("stt: empty audio buffer")

// Config holds component-level transcription settings, applied to
// every request unless per-call Options override them.
type Config struct {
	Language           string
	SampleRate         int
	EnablePunctuation  bool
	EnableTimestamps   bool
	PreferredFramework types.Framework
}

// DefaultConfig returns English transcription of 16 kHz audio.
func DefaultConfig() Config {
	return Config{
		Language:          "en",
		SampleRate:        16000,
		EnablePunctuation: true,
	}
}

// Options are per-request transcription settings.
type Options struct {
	Language          string
	SampleRate        int
	EnablePunctuation bool
	EnableTimestamps  bool
}

// Result is a completed transcription.
type Result struct {
	ID             string
	Text           string
	Confidence     float64
	Language       string
	WordCount      int
	ModelID        string
	ProcessingTime time.Duration
}

// Backend is the transcription interface resolved through the registry.
type Backend interface {
	Transcribe(ctx context.Context, audio []byte, opts Options) (*Result, error)
	Close() error
}
