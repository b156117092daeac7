// Package mocks provides scripted capability backends and registry
// providers for tests.
package mocks

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/BaSui01/voiceflow/llm"
	"github.com/BaSui01/voiceflow/registry"
	"github.com/BaSui01/voiceflow/stt"
	"github.com/BaSui01/voiceflow/tts"
	"github.com/BaSui01/voiceflow/types"
	"github.com/BaSui01/voiceflow/vad"
)

// VADBackend is a scripted vad.Backend.
type VADBackend struct {
	Speech bool
	Err    error
	Calls  atomic.Int32
	Resets atomic.Int32
}

func (m *VADBackend) DetectSpeech(ctx context.Context, pcm []byte) (*vad.Result, error) {
	m.Calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	return &vad.Result{SpeechDetected: m.Speech, TotalFrames: 1}, nil
}

func (m *VADBackend) Reset()       { m.Resets.Add(1) }
func (m *VADBackend) Close() error { return nil }

// STTBackend is a scripted stt.Backend. Delay simulates inference time.
type STTBackend struct {
	Text  string
	Err   error
	Delay time.Duration
	Calls atomic.Int32
}

func (m *STTBackend) Transcribe(ctx context.Context, audio []byte, opts stt.Options) (*stt.Result, error) {
	m.Calls.Add(1)
	if err := wait(ctx, m.Delay); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &stt.Result{Text: m.Text, Confidence: 0.95}, nil
}

func (m *STTBackend) Close() error { return nil }

// LLMBackend is a scripted llm.Backend. With Delay set it waits,
// honoring context cancellation; Cancel is recorded.
type LLMBackend struct {
	Text      string
	Err       error
	Delay     time.Duration
	Calls     atomic.Int32
	Cancelled atomic.Bool

	// IgnoreContext simulates a backend that does not cooperate with
	// cancellation: the delay runs to completion regardless.
	IgnoreContext bool
}

func (m *LLMBackend) Generate(ctx context.Context, prompt string, opts llm.Options) (*llm.Result, error) {
	m.Calls.Add(1)
	if m.IgnoreContext {
		time.Sleep(m.Delay)
	} else if err := wait(ctx, m.Delay); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &llm.Result{
		Text:             m.Text,
		FinishReason:     "stop",
		PromptTokens:     4,
		CompletionTokens: 8,
		TotalTokens:      12,
	}, nil
}

func (m *LLMBackend) Cancel()      { m.Cancelled.Store(true) }
func (m *LLMBackend) Close() error { return nil }

// TTSBackend is a scripted tts.Backend.
type TTSBackend struct {
	Audio []byte
	Err   error
	Delay time.Duration
	Calls atomic.Int32
}

func (m *TTSBackend) Synthesize(ctx context.Context, text string, opts tts.Options) (*tts.Result, error) {
	m.Calls.Add(1)
	if err := wait(ctx, m.Delay); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	audio := m.Audio
	if audio == nil {
		audio = make([]byte, 3200)
	}
	return &tts.Result{Audio: audio, SampleRate: 16000, Channels: 1}, nil
}

func (m *TTSBackend) Close() error { return nil }

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Provider wraps a backend handle as an accept-all registry provider.
func Provider(name string, cap types.Capability, priority int, handle any) registry.Provider {
	return registry.Provider{
		Name:       name,
		Capability: cap,
		Priority:   priority,
		CanHandle:  func(*types.ServiceRequest) bool { return true },
		Create:     func(*types.ServiceRequest) (any, error) { return handle, nil },
	}
}

// Backends bundles one scripted backend per capability.
type Backends struct {
	VAD *VADBackend
	STT *STTBackend
	LLM *LLMBackend
	TTS *TTSBackend
}

// NewBackends returns a happy-path set: speech detected, fixed
// transcription and response, non-empty audio.
func NewBackends() *Backends {
	return &Backends{
		VAD: &VADBackend{Speech: true},
		STT: &STTBackend{Text: "turn the lights on"},
		LLM: &LLMBackend{Text: "Turning the lights on."},
		TTS: &TTSBackend{},
	}
}

// Register installs providers for all four backends into r.
func (b *Backends) Register(r *registry.Registry) error {
	for _, p := range []registry.Provider{
		Provider("mock-vad", types.CapabilityVAD, 10, b.VAD),
		Provider("mock-stt", types.CapabilitySTT, 10, b.STT),
		Provider("mock-llm", types.CapabilityLLM, 10, b.LLM),
		Provider("mock-tts", types.CapabilityTTS, 10, b.TTS),
	} {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}
