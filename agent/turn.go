package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/voiceflow/llm"
	"github.com/BaSui01/voiceflow/stt"
	"github.com/BaSui01/voiceflow/tts"
	"github.com/BaSui01/voiceflow/vad"
)

// runStage executes fn under a stage deadline. On timeout the stage
// goroutine is abandoned: a backend that ignores cancellation finishes
// on its own and its result is dropped at this boundary.
func runStage[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := fn(sctx)
		ch <- outcome{val: v, err: err}
	}()

	select {
	case out := <-ch:
		return out.val, out.err
	case <-sctx.Done():
		var zero T
		return zero, sctx.Err()
	}
}

// ProcessTurn runs one full conversation turn: VAD gate, then strictly
// sequential STT -> LLM -> TTS.
//
// No detected speech ends the turn successfully with SpeechDetected
// false. An empty transcription ends the turn successfully after the
// STT stage. Stage failures and timeouts are terminal for the turn;
// the partial result accumulated so far is always returned alongside
// the error. On success the pipeline is left in playing_tts until the
// caller signals CompletePlayback.
func (a *Agent) ProcessTurn(ctx context.Context, audio []byte) (*TurnResult, error) {
	return a.processTurn(ctx, audio, nil)
}

// ProcessStream runs the same turn protocol and additionally delivers
// ordered events (speech, transcription, response, audio, then
// completed or error) to onEvent as each stage finishes.
func (a *Agent) ProcessStream(ctx context.Context, audio []byte, onEvent EventHandler) (*TurnResult, error) {
	return a.processTurn(ctx, audio, onEvent)
}

func (a *Agent) processTurn(ctx context.Context, audio []byte, onEvent EventHandler) (result *TurnResult, turnErr error) {
	if !a.tryBeginTurn() {
		return nil, ErrTurnInProgress
	}
	defer a.endTurn()

	if !a.IsReady() {
		return nil, ErrNotInitialized
	}
	if err := a.ensureVAD(ctx); err != nil {
		return nil, fmt.Errorf("agent: voice activity detector: %w", err)
	}
	if err := a.pipeline.BeginListening(); err != nil {
		return nil, err
	}

	turnID := uuid.NewString()
	res := &TurnResult{TurnID: turnID}
	start := time.Now()
	status := "completed"

	ctx, span := a.tracer.Start(ctx, "agent.turn",
		trace.WithAttributes(attribute.String("turn.id", turnID)))
	defer span.End()

	emit := func(ev Event) {
		if onEvent != nil {
			ev.TurnID = turnID
			onEvent(ev)
		}
	}
	defer func() {
		res.Timings.Total = time.Since(start)
		a.setLastTurn(res)
		if a.metrics != nil {
			a.metrics.RecordTurn(status, res.Timings.Total)
		}
		a.recordHistory(res, status, turnErr)
		a.logger.Info("turn finished",
			zap.String("turn_id", turnID),
			zap.String("status", status),
			zap.Duration("total", res.Timings.Total))
	}()

	fail := func(stage string, err error) (*TurnResult, error) {
		_ = a.pipeline.FinishTurn()
		emit(Event{Type: EventError, Err: err})
		span.RecordError(err)
		a.logger.Warn("turn stage failed",
			zap.String("turn_id", turnID),
			zap.String("stage", stage),
			zap.Error(err))
		return res, err
	}

	// Stage 1: voice activity gate.
	a.vad.ResetDetector()
	vadStart := time.Now()
	vres, err := a.vad.Detect(ctx, audio)
	res.Timings.VAD = time.Since(vadStart)
	a.recordStage("vad", res.Timings.VAD, err)
	if err != nil {
		status = "vad_error"
		turnErr = fmt.Errorf("agent: speech detection: %w", err)
		return fail("vad", turnErr)
	}
	res.SpeechDetected = vres.SpeechDetected
	emit(Event{Type: EventSpeech, SpeechDetected: vres.SpeechDetected})
	if !vres.SpeechDetected {
		status = "no_speech"
		_ = a.pipeline.FinishTurn()
		emit(Event{Type: EventCompleted, Result: res})
		return res, nil
	}
	_ = a.pipeline.StartProcessing()

	// Stage 2: transcription.
	sttStart := time.Now()
	tr, err := a.stt.Transcribe(ctx, audio, nil)
	res.Timings.STT = time.Since(sttStart)
	a.recordStage("transcription", res.Timings.STT, err)
	if err != nil {
		status = "transcription_error"
		turnErr = fmt.Errorf("agent: transcription: %w", err)
		return fail("transcription", turnErr)
	}
	res.Transcription = tr.Text
	emit(Event{Type: EventTranscription, Text: tr.Text})
	if strings.TrimSpace(tr.Text) == "" {
		status = "empty_transcription"
		_ = a.pipeline.FinishTurn()
		emit(Event{Type: EventCompleted, Result: res})
		return res, nil
	}
	_ = a.pipeline.StartGeneration()

	// Stage 3: generation, bounded by the generation timeout.
	llmStart := time.Now()
	gen, err := runStage(ctx, a.cfg.GenerationTimeout, func(sctx context.Context) (*llm.Result, error) {
		return a.llm.Generate(sctx, res.Transcription, nil)
	})
	res.Timings.LLM = time.Since(llmStart)
	a.recordStage("generation", res.Timings.LLM, err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			status = "generation_timeout"
			turnErr = ErrGenerationTimeout
		} else {
			status = "generation_error"
			turnErr = fmt.Errorf("agent: generation: %w", err)
		}
		return fail("generation", turnErr)
	}
	res.Response = gen.Text
	emit(Event{Type: EventResponse, Text: gen.Text})

	// Stage 4: synthesis, bounded by the synthesis timeout. On failure
	// the result keeps the generated response.
	ttsStart := time.Now()
	syn, err := runStage(ctx, a.cfg.SynthesisTimeout, func(sctx context.Context) (*tts.Result, error) {
		return a.tts.Synthesize(sctx, res.Response, nil)
	})
	res.Timings.TTS = time.Since(ttsStart)
	a.recordStage("synthesis", res.Timings.TTS, err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			status = "synthesis_timeout"
			turnErr = ErrSynthesisTimeout
		} else {
			status = "synthesis_error"
			turnErr = fmt.Errorf("agent: synthesis: %w", err)
		}
		return fail("synthesis", turnErr)
	}
	res.SynthesizedAudio = syn.Audio
	res.SampleRate = syn.SampleRate
	emit(Event{Type: EventAudio, Audio: syn.Audio, SampleRate: syn.SampleRate})

	_ = a.pipeline.StartPlayback()
	emit(Event{Type: EventCompleted, Result: res})
	return res, nil
}

func (a *Agent) recordStage(stage string, d time.Duration, err error) {
	if a.metrics != nil {
		a.metrics.RecordStage(stage, d, err)
	}
}

func (a *Agent) recordHistory(res *TurnResult, status string, turnErr error) {
	if a.history == nil {
		return
	}
	rec := TurnRecord{
		TurnID:         res.TurnID,
		SpeechDetected: res.SpeechDetected,
		Transcription:  res.Transcription,
		Response:       res.Response,
		AudioBytes:     len(res.SynthesizedAudio),
		Status:         status,
		VADTime:        res.Timings.VAD,
		STTTime:        res.Timings.STT,
		LLMTime:        res.Timings.LLM,
		TTSTime:        res.Timings.TTS,
		TotalTime:      res.Timings.Total,
		CreatedAt:      time.Now(),
	}
	if turnErr != nil {
		rec.Error = turnErr.Error()
	}
	// The turn's context may already be done; persistence gets its own.
	if err := a.history.RecordTurn(context.Background(), rec); err != nil {
		a.logger.Warn("turn history write failed",
			zap.String("turn_id", res.TurnID),
			zap.Error(err))
	}
}

// DetectOnly runs just the VAD stage, outside the turn protocol. The
// pipeline state is not touched.
func (a *Agent) DetectOnly(ctx context.Context, audio []byte) (*vad.Result, error) {
	if err := a.ensureVAD(ctx); err != nil {
		return nil, fmt.Errorf("agent: voice activity detector: %w", err)
	}
	return a.vad.Detect(ctx, audio)
}

// TranscribeOnly runs just the STT stage, outside the turn protocol.
func (a *Agent) TranscribeOnly(ctx context.Context, audio []byte) (*stt.Result, error) {
	return a.stt.Transcribe(ctx, audio, nil)
}

// GenerateOnly runs just the LLM stage under the generation timeout,
// outside the turn protocol.
func (a *Agent) GenerateOnly(ctx context.Context, prompt string) (*llm.Result, error) {
	res, err := runStage(ctx, a.cfg.GenerationTimeout, func(sctx context.Context) (*llm.Result, error) {
		return a.llm.Generate(sctx, prompt, nil)
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrGenerationTimeout
	}
	return res, err
}

// SynthesizeOnly runs just the TTS stage under the synthesis timeout,
// outside the turn protocol.
func (a *Agent) SynthesizeOnly(ctx context.Context, text string) (*tts.Result, error) {
	res, err := runStage(ctx, a.cfg.SynthesisTimeout, func(sctx context.Context) (*tts.Result, error) {
		return a.tts.Synthesize(sctx, text, nil)
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrSynthesisTimeout
	}
	return res, err
}
