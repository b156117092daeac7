// Package voiceflow provides a top-level convenience entry point for
// assembling an on-device voice agent with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/voiceflow"
//
//	rt, err := voiceflow.New(
//		voiceflow.WithSTTModel("models/whisper-tiny.onnx", "whisper-tiny", "Whisper Tiny"),
//		voiceflow.WithLLMModel("models/qwen-0.5b.gguf", "qwen-0.5b", "Qwen 0.5B"),
//		voiceflow.WithTTSVoice("models/piper-amy.onnx", "piper-amy", "Piper Amy"),
//	)
//
// This is a thin wrapper around [quick.New]; both produce identical
// results. Use this package when you prefer the shorter import path.
package voiceflow

import (
	"github.com/BaSui01/voiceflow/quick"
)

// Option configures the runtime created by [New].
type Option = quick.Option

// Runtime is the assembled voice agent with its supporting pieces.
type Runtime = quick.Runtime

// New assembles a voice agent runtime with minimal configuration.
func New(opts ...Option) (*Runtime, error) {
	return quick.New(opts...)
}

// Re-export runtime options so callers never need to import quick/.

// WithConfig uses an already loaded configuration.
var WithConfig = quick.WithConfig

// WithConfigFile loads configuration from a YAML file.
var WithConfigFile = quick.WithConfigFile

// WithLogger sets a custom zap logger.
var WithLogger = quick.WithLogger

// WithRegistry sets the provider registry to resolve backends from.
var WithRegistry = quick.WithRegistry

// WithPrometheusRegisterer sets where runtime metrics are registered.
var WithPrometheusRegisterer = quick.WithPrometheusRegisterer

// WithSTTModel loads the given transcription model during New.
var WithSTTModel = quick.WithSTTModel

// WithLLMModel loads the given generation model during New.
var WithLLMModel = quick.WithLLMModel

// WithTTSVoice loads the given synthesis voice during New.
var WithTTSVoice = quick.WithTTSVoice
