package types

// Capability identifies one of the four inference capabilities the
// runtime composes into a voice agent.
type Capability string

const (
	CapabilityVAD Capability = "vad"
	CapabilitySTT Capability = "stt"
	CapabilityLLM Capability = "llm"
	CapabilityTTS Capability = "tts"
)

// Valid reports whether c is one of the known capabilities.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityVAD, CapabilitySTT, CapabilityLLM, CapabilityTTS:
		return true
	}
	return false
}

func (c Capability) String() string { return string(c) }

// Framework is an optional hint naming the inference framework a
// request prefers. Providers are free to ignore it in their predicates;
// an empty Framework means "any".
type Framework string

const (
	FrameworkAny        Framework = ""
	FrameworkONNX       Framework = "onnx"
	FrameworkWhisperCPP Framework = "whispercpp"
	FrameworkLlamaCPP   Framework = "llamacpp"
	FrameworkSystem     Framework = "system"
)

// ServiceRequest describes what a component needs from the registry:
// which capability, for which model, with which framework preference.
// Provider predicates inspect it, and the winning factory receives it.
type ServiceRequest struct {
	// Identifier is the caller-chosen id of the model or backend,
	// e.g. "whisper-base" or "energy-vad".
	Identifier string

	Capability Capability

	// Framework is a preference, not a requirement. Predicates that
	// care should return false when it names a framework they do not
	// implement.
	Framework Framework

	// ModelPath is the on-disk location of the model artifact.
	// Built-in backends that need no artifact use a "builtin:" path.
	ModelPath string

	// Config carries backend-specific settings (sample rates,
	// thresholds, context sizes). Factories read what they understand.
	Config map[string]any
}
