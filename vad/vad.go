// Package vad provides voice activity detection: a lifecycle-managed
// component that dispatches to a registered VAD backend, plus the
// built-in energy detector that serves as the lowest-priority fallback.
package vad

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/voiceflow/types"
)

// BuiltinEnergyPath is the model path understood by the built-in
// energy detector, which needs no model artifact.
const BuiltinEnergyPath = "builtin:energy"

// ErrNoAudio is returned when detection is attempted on an empty buffer.
var ErrNoAudio = errors.New("vad: empty audio buffer")

// Config holds detection parameters. Audio is 16-bit little-endian
// mono PCM at SampleRate.
type Config struct {
	SampleRate         int
	FrameDuration      time.Duration
	EnergyThreshold    float64
	VoiceStartFrames   int // consecutive voiced frames before speech starts
	VoiceEndFrames     int // consecutive silent frames before speech ends
	PreferredFramework types.Framework
}

// DefaultConfig returns the detection defaults: 16 kHz mono, 100 ms
// frames, 0.005 normalized RMS threshold.
func DefaultConfig() Config {
	return Config{
		SampleRate:       16000,
		FrameDuration:    100 * time.Millisecond,
		EnergyThreshold:  0.005,
		VoiceStartFrames: 2,
		VoiceEndFrames:   3,
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("vad: sample rate %d out of range [8000, 48000]", c.SampleRate)
	}
	if c.FrameDuration <= 0 {
		return errors.New("vad: frame duration must be positive")
	}
	if c.EnergyThreshold < 0 || c.EnergyThreshold > 1 {
		return fmt.Errorf("vad: energy threshold %f out of range [0, 1]", c.EnergyThreshold)
	}
	if c.VoiceStartFrames < 1 || c.VoiceEndFrames < 1 {
		return errors.New("vad: voice start/end frames must be at least 1")
	}
	return nil
}

// FrameSamples returns the number of samples per analysis frame.
func (c Config) FrameSamples() int {
	return int(float64(c.SampleRate) * c.FrameDuration.Seconds())
}

// Result is the outcome of analyzing one audio buffer.
type Result struct {
	SpeechDetected bool
	PeakEnergy     float64 // highest per-frame RMS, normalized to [0, 1]
	VoicedFrames   int
	TotalFrames    int
	ProcessingTime time.Duration
}

// Backend is the detector interface resolved through the registry.
// Implementations may keep hangover state across calls; Reset clears it.
type Backend interface {
	DetectSpeech(ctx context.Context, pcm []byte) (*Result, error)
	Reset()
	Close() error
}
