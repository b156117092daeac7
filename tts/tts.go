// Package tts provides text-to-speech: a lifecycle-managed component
// that resolves a synthesis backend through the service registry.
package tts

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/voiceflow/types"
)

// ErrEmptyText is returned when synthesis is attempted without input.
var ErrEmptyText = errors.New("tts: empty text")

// Config holds component-level synthesis settings.
type Config struct {
	Voice              string
	SampleRate         int
	SpeakingRate       float32 // 1.0 is natural speed
	PreferredFramework types.Framework
}

// DefaultConfig returns 22.05 kHz synthesis at natural speed.
func DefaultConfig() Config {
	return Config{
		SampleRate:   22050,
		SpeakingRate: 1.0,
	}
}

// Options are per-request synthesis settings.
type Options struct {
	Voice        string
	SampleRate   int
	SpeakingRate float32
}

// Result is a completed synthesis. Audio is 16-bit little-endian mono
// PCM at SampleRate; playback is the caller's concern.
type Result struct {
	ID             string
	Audio          []byte
	SampleRate     int
	Channels       int
	Duration       time.Duration
	CharCount      int
	VoiceID        string
	ProcessingTime time.Duration
}

// Backend is the synthesis interface resolved through the registry.
type Backend interface {
	Synthesize(ctx context.Context, text string, opts Options) (*Result, error)
	Close() error
}
