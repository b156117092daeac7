// Package config defines the voiceflow runtime configuration and its
// YAML loader with environment overrides.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML accepts both "800ms" strings
// and plain nanosecond integers.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML decodes either a duration string or an integer.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("config: invalid duration value")
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// Config is the root configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Agent     AgentConfig     `yaml:"agent"`
	VAD       VADConfig       `yaml:"vad"`
	History   HistoryConfig   `yaml:"history"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error
	Development bool   `yaml:"development"` // console encoder, no sampling
}

// TelemetryConfig controls OpenTelemetry SDK initialization. When
// Enabled is false no exporters are created and the global providers
// stay noop.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// AgentConfig holds turn-orchestration settings.
type AgentConfig struct {
	SystemPrompt      string   `yaml:"system_prompt"`
	MaxTokens         int      `yaml:"max_tokens"`
	Temperature       float32  `yaml:"temperature"`
	GenerationTimeout Duration `yaml:"generation_timeout"`
	SynthesisTimeout  Duration `yaml:"synthesis_timeout"`
	Cooldown          Duration `yaml:"cooldown"`
}

// VADConfig holds voice activity detection defaults.
type VADConfig struct {
	SampleRate       int      `yaml:"sample_rate"`
	FrameDuration    Duration `yaml:"frame_duration"`
	EnergyThreshold  float64  `yaml:"energy_threshold"`
	VoiceStartFrames int      `yaml:"voice_start_frames"`
	VoiceEndFrames   int      `yaml:"voice_end_frames"`
}

// HistoryConfig controls the optional local turn history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "voiceflow",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "voiceflow",
		},
		Agent: AgentConfig{
			MaxTokens:         256,
			Temperature:       0.7,
			GenerationTimeout: Duration(30 * time.Second),
			SynthesisTimeout:  Duration(15 * time.Second),
			Cooldown:          Duration(800 * time.Millisecond),
		},
		VAD: VADConfig{
			SampleRate:       16000,
			FrameDuration:    Duration(100 * time.Millisecond),
			EnergyThreshold:  0.005,
			VoiceStartFrames: 2,
			VoiceEndFrames:   3,
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    "voiceflow.db",
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	if c.Agent.GenerationTimeout <= 0 {
		return fmt.Errorf("config: generation timeout must be positive, got %s", c.Agent.GenerationTimeout)
	}
	if c.Agent.SynthesisTimeout <= 0 {
		return fmt.Errorf("config: synthesis timeout must be positive, got %s", c.Agent.SynthesisTimeout)
	}
	if c.Agent.Cooldown < 0 {
		return fmt.Errorf("config: cooldown must not be negative, got %s", c.Agent.Cooldown)
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("config: telemetry enabled without otlp endpoint")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("config: telemetry sample rate %f out of range [0, 1]", c.Telemetry.SampleRate)
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("config: history enabled without path")
	}
	return nil
}
