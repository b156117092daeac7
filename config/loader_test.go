package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.Agent.GenerationTimeout.Std())
	assert.Equal(t, 15*time.Second, cfg.Agent.SynthesisTimeout.Std())
	assert.Equal(t, 800*time.Millisecond, cfg.Agent.Cooldown.Std())
	assert.Equal(t, 16000, cfg.VAD.SampleRate)
	assert.Equal(t, 0.005, cfg.VAD.EnergyThreshold)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "voiceflow", cfg.Metrics.Namespace)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
agent:
  system_prompt: "You are a helpful assistant."
  generation_timeout: 10s
  cooldown: 500ms
vad:
  energy_threshold: 0.01
history:
  enabled: true
  path: /tmp/turns.db
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "You are a helpful assistant.", cfg.Agent.SystemPrompt)
	assert.Equal(t, 10*time.Second, cfg.Agent.GenerationTimeout.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Agent.Cooldown.Std())
	assert.Equal(t, 0.01, cfg.VAD.EnergyThreshold)
	assert.True(t, cfg.History.Enabled)

	// Untouched sections keep defaults.
	assert.Equal(t, 15*time.Second, cfg.Agent.SynthesisTimeout.Std())
	assert.Equal(t, 16000, cfg.VAD.SampleRate)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: ["), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOICEFLOW_LOG_LEVEL", "warn")
	t.Setenv("VOICEFLOW_GENERATION_TIMEOUT", "5s")
	t.Setenv("VOICEFLOW_HISTORY_PATH", "/tmp/override.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 5*time.Second, cfg.Agent.GenerationTimeout.Std())
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/override.db", cfg.History.Path)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"zero generation timeout", func(c *Config) { c.Agent.GenerationTimeout = 0 }},
		{"negative cooldown", func(c *Config) { c.Agent.Cooldown = Duration(-time.Second) }},
		{"telemetry without endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.OTLPEndpoint = ""
		}},
		{"sample rate above one", func(c *Config) { c.Telemetry.SampleRate = 2 }},
		{"history without path", func(c *Config) {
			c.History.Enabled = true
			c.History.Path = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBuildLogger(t *testing.T) {
	logger, err := BuildLogger(LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = BuildLogger(LogConfig{Level: "chatty"})
	assert.Error(t, err)
}
