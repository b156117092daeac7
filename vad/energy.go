package vad

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/BaSui01/voiceflow/registry"
	"github.com/BaSui01/voiceflow/types"
)

// EnergyBackend is a model-free detector based on per-frame RMS energy
// with consecutive-frame hangover: speech starts after VoiceStartFrames
// voiced frames and ends after VoiceEndFrames silent ones.
type EnergyBackend struct {
	mu  sync.Mutex
	cfg Config

	speaking          bool
	consecutiveVoice  int
	consecutiveSilent int
}

// NewEnergyBackend creates an energy detector. Invalid configs fall
// back to DefaultConfig.
func NewEnergyBackend(cfg Config) *EnergyBackend {
	if cfg.Validate() != nil {
		cfg = DefaultConfig()
	}
	return &EnergyBackend{cfg: cfg}
}

// DetectSpeech analyzes a 16-bit little-endian mono PCM buffer frame
// by frame. A trailing partial frame is ignored. SpeechDetected is true
// when the detector was, or became, in the speaking state during the
// buffer.
func (b *EnergyBackend) DetectSpeech(ctx context.Context, pcm []byte) (*Result, error) {
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	frameBytes := b.cfg.FrameSamples() * 2
	res := &Result{}
	spoke := false

	for off := 0; off+frameBytes <= len(pcm); off += frameBytes {
		rms := frameRMS(pcm[off : off+frameBytes])
		res.TotalFrames++
		if rms > res.PeakEnergy {
			res.PeakEnergy = rms
		}

		if rms >= b.cfg.EnergyThreshold {
			res.VoicedFrames++
			b.consecutiveVoice++
			b.consecutiveSilent = 0
			if !b.speaking && b.consecutiveVoice >= b.cfg.VoiceStartFrames {
				b.speaking = true
			}
		} else {
			b.consecutiveSilent++
			b.consecutiveVoice = 0
			if b.speaking && b.consecutiveSilent >= b.cfg.VoiceEndFrames {
				b.speaking = false
			}
		}
		if b.speaking {
			spoke = true
		}
	}

	res.SpeechDetected = spoke
	res.ProcessingTime = time.Since(start)
	return res, nil
}

// Reset clears hangover state between utterances.
func (b *EnergyBackend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.speaking = false
	b.consecutiveVoice = 0
	b.consecutiveSilent = 0
}

// Close implements Backend. The energy detector holds no resources.
func (b *EnergyBackend) Close() error { return nil }

// frameRMS computes the RMS of one PCM16LE frame, normalized to [0, 1].
func frameRMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(frame[2*i:]))
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// EnergyProvider returns the registry provider for the built-in energy
// detector. It registers at priority 0 and accepts any VAD request, so
// model-backed providers registered at higher priorities outrank it.
func EnergyProvider() registry.Provider {
	return registry.Provider{
		Name:       "energy-vad",
		Capability: types.CapabilityVAD,
		Priority:   0,
		CanHandle: func(req *types.ServiceRequest) bool {
			return req.Framework == types.FrameworkAny || req.Framework == types.FrameworkSystem
		},
		Create: func(req *types.ServiceRequest) (any, error) {
			return NewEnergyBackend(configFromRequest(req)), nil
		},
	}
}

// configFromRequest maps ServiceRequest.Config keys onto a Config,
// starting from defaults.
func configFromRequest(req *types.ServiceRequest) Config {
	cfg := DefaultConfig()
	if req == nil || req.Config == nil {
		return cfg
	}
	if v, ok := req.Config["sample_rate"].(int); ok {
		cfg.SampleRate = v
	}
	if v, ok := req.Config["frame_duration"].(time.Duration); ok {
		cfg.FrameDuration = v
	}
	if v, ok := req.Config["energy_threshold"].(float64); ok {
		cfg.EnergyThreshold = v
	}
	if v, ok := req.Config["voice_start_frames"].(int); ok {
		cfg.VoiceStartFrames = v
	}
	if v, ok := req.Config["voice_end_frames"].(int); ok {
		cfg.VoiceEndFrames = v
	}
	return cfg
}
