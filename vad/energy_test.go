package vad

import (
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sinePCM generates 16-bit little-endian mono PCM containing a 440 Hz
// sine at the given amplitude (0..1).
func sinePCM(d time.Duration, sampleRate int, amplitude float64) []byte {
	n := int(float64(sampleRate) * d.Seconds())
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := amplitude * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(v*32767)))
	}
	return buf
}

func silencePCM(d time.Duration, sampleRate int) []byte {
	n := int(float64(sampleRate) * d.Seconds())
	return make([]byte, n*2)
}

func TestEnergyDetectSpeech(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name       string
		audio      []byte
		wantSpeech bool
	}{
		{
			name:       "loud tone is speech",
			audio:      sinePCM(time.Second, cfg.SampleRate, 0.3),
			wantSpeech: true,
		},
		{
			name:       "silence is not speech",
			audio:      silencePCM(time.Second, cfg.SampleRate),
			wantSpeech: false,
		},
		{
			name:       "faint noise below threshold is not speech",
			audio:      sinePCM(time.Second, cfg.SampleRate, 0.001),
			wantSpeech: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewEnergyBackend(cfg)
			res, err := b.DetectSpeech(context.Background(), tt.audio)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSpeech, res.SpeechDetected)
			assert.Equal(t, 10, res.TotalFrames)
		})
	}
}

func TestEnergyEmptyBuffer(t *testing.T) {
	b := NewEnergyBackend(DefaultConfig())
	_, err := b.DetectSpeech(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestEnergyHangover(t *testing.T) {
	cfg := DefaultConfig()
	b := NewEnergyBackend(cfg)
	ctx := context.Background()

	// A single voiced frame is below VoiceStartFrames; no speech yet.
	res, err := b.DetectSpeech(ctx, sinePCM(cfg.FrameDuration, cfg.SampleRate, 0.3))
	require.NoError(t, err)
	assert.False(t, res.SpeechDetected)
	assert.Equal(t, 1, res.VoicedFrames)

	// The second consecutive voiced frame crosses the start threshold.
	res, err = b.DetectSpeech(ctx, sinePCM(cfg.FrameDuration, cfg.SampleRate, 0.3))
	require.NoError(t, err)
	assert.True(t, res.SpeechDetected)

	// Speech persists through fewer than VoiceEndFrames silent frames.
	res, err = b.DetectSpeech(ctx, silencePCM(2*cfg.FrameDuration, cfg.SampleRate))
	require.NoError(t, err)
	assert.True(t, res.SpeechDetected)

	// The third consecutive silent frame ends the utterance.
	res, err = b.DetectSpeech(ctx, silencePCM(cfg.FrameDuration, cfg.SampleRate))
	require.NoError(t, err)
	assert.False(t, res.SpeechDetected)
}

func TestEnergyReset(t *testing.T) {
	cfg := DefaultConfig()
	b := NewEnergyBackend(cfg)
	ctx := context.Background()

	res, err := b.DetectSpeech(ctx, sinePCM(time.Second, cfg.SampleRate, 0.3))
	require.NoError(t, err)
	require.True(t, res.SpeechDetected)

	b.Reset()

	// After reset a single voiced frame must not count prior history.
	res, err = b.DetectSpeech(ctx, sinePCM(cfg.FrameDuration, cfg.SampleRate, 0.3))
	require.NoError(t, err)
	assert.False(t, res.SpeechDetected)
}

func TestEnergyPartialFrameIgnored(t *testing.T) {
	cfg := DefaultConfig()
	b := NewEnergyBackend(cfg)

	// Half a frame of audio: no full frame to analyze.
	res, err := b.DetectSpeech(context.Background(), sinePCM(cfg.FrameDuration/2, cfg.SampleRate, 0.3))
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalFrames)
	assert.False(t, res.SpeechDetected)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"sample rate too low", func(c *Config) { c.SampleRate = 4000 }, true},
		{"sample rate too high", func(c *Config) { c.SampleRate = 96000 }, true},
		{"zero frame duration", func(c *Config) { c.FrameDuration = 0 }, true},
		{"negative threshold", func(c *Config) { c.EnergyThreshold = -0.1 }, true},
		{"threshold above one", func(c *Config) { c.EnergyThreshold = 1.5 }, true},
		{"zero start frames", func(c *Config) { c.VoiceStartFrames = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
