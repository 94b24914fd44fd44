package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	assert.Equal(t, "grpc", cfg.Telemetry.Protocol)
	assert.False(t, cfg.Generation.APIKey.IsSet())
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Store.MaxAttempts)
	assert.Equal(t, 10, cfg.Escalation.Increment)
	assert.Equal(t, 5*time.Minute, cfg.Escalation.DecayAfter.Duration())
	assert.Equal(t, 60, cfg.Policy.DefaultThreshold)
	assert.Equal(t, "mediation", cfg.Events.SubjectPrefix)
	assert.Empty(t, cfg.Events.URL)

	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }, "rate_limit"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"telemetry without endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = ""
		}, "telemetry.endpoint"},
		{"bad telemetry protocol", func(c *Config) { c.Telemetry.Protocol = "udp" }, "telemetry.protocol"},
		{"sample rate out of range", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "sample_rate"},
		{"unknown provider", func(c *Config) { c.Generation.Provider = "llamas" }, "generation.provider"},
		{"unknown store", func(c *Config) { c.Store.Driver = "postgres" }, "store.driver"},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"zero attempts", func(c *Config) { c.Store.MaxAttempts = 0 }, "max_attempts"},
		{"threshold below floor", func(c *Config) { c.Policy.DefaultThreshold = 10 }, "default_threshold"},
		{"zero increment", func(c *Config) { c.Escalation.Increment = 0 }, "escalation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("memory store needs no path", func(t *testing.T) {
		cfg := Default()
		cfg.Store.Driver = StoreMemory
		cfg.Store.Path = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-live-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "sk-live-123", s.Value())

	data, err := json.Marshal(GenerationConfig{APIKey: s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-live-123")

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestSecret_UnmarshalJSON(t *testing.T) {
	var s Secret
	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &s))
	assert.Equal(t, "abc", s.Value())

	require.Error(t, json.Unmarshal([]byte(`"[REDACTED]"`), &s))
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.Error(t, d.UnmarshalText([]byte("-5s")))
	require.Error(t, d.UnmarshalText([]byte("soon")))

	out, err := Duration(time.Minute).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m0s", string(out))
}
