// Package config loads mediatord configuration from a YAML file and
// MEDIATORD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds the complete mediatord configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Generation GenerationConfig `koanf:"generation"`
	Store      StoreConfig      `koanf:"store"`
	Escalation EscalationConfig `koanf:"escalation"`
	Policy     PolicyConfig     `koanf:"policy"`
	Events     EventsConfig     `koanf:"events"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	BodyLimit       string   `koanf:"body_limit"`
	RateLimit       float64  `koanf:"rate_limit"` // requests per second per client, 0 disables
}

// LoggingConfig selects level, encoding and the OTEL bridge.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled        bool    `koanf:"enabled"`
	Endpoint       string  `koanf:"endpoint"`
	Protocol       string  `koanf:"protocol"` // grpc or http/protobuf
	Insecure       bool    `koanf:"insecure"`
	TLSSkipVerify  bool    `koanf:"tls_skip_verify"`
	SampleRate     float64 `koanf:"sample_rate"`
	ServiceVersion string  `koanf:"service_version"`
}

// GenerationConfig configures the structured-completion provider. An empty
// APIKey keeps every component on its heuristic path.
type GenerationConfig struct {
	Provider       string   `koanf:"provider"`
	APIKey         Secret   `koanf:"api_key"`
	Model          string   `koanf:"model"`
	BaseURL        string   `koanf:"base_url"`
	Timeout        Duration `koanf:"timeout"`
	RewriteTimeout Duration `koanf:"rewrite_timeout"`
	Temperature    float64  `koanf:"temperature"`
	RatePerMinute  float64  `koanf:"rate_per_minute"`
	Burst          int      `koanf:"burst"`
}

// StoreConfig selects the profile store.
type StoreConfig struct {
	Driver      string `koanf:"driver"`
	Path        string `koanf:"path"`
	MaxAttempts int    `koanf:"max_attempts"`
}

// EscalationConfig tunes the escalation assessor.
type EscalationConfig struct {
	Increment    int      `koanf:"increment"`
	DecayAfter   Duration `koanf:"decay_after"`
	DecayStep    int      `koanf:"decay_step"`
	ResetAmount  int      `koanf:"reset_amount"`
	HistoryLimit int      `koanf:"history_limit"`
}

// PolicyConfig tunes the intervention policy engine.
type PolicyConfig struct {
	DefaultThreshold int `koanf:"default_threshold"`
	HistoryLimit     int `koanf:"history_limit"`
	UnhelpfulStep    int `koanf:"unhelpful_step"`
	HelpfulStep      int `koanf:"helpful_step"`
}

// EventsConfig enables NATS publishing when URL is set.
type EventsConfig struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit cannot be negative"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid logging.level: %q", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("invalid logging.format: %q (must be json or console)", c.Logging.Format))
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
	}
	if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
		errs = append(errs, fmt.Errorf("invalid telemetry.protocol: %q (must be grpc or http/protobuf)", c.Telemetry.Protocol))
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %v", c.Telemetry.SampleRate))
	}

	switch c.Generation.Provider {
	case "", "disabled", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown generation.provider: %q", c.Generation.Provider))
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver: %q", c.Store.Driver))
	}
	if c.Store.MaxAttempts < 1 {
		errs = append(errs, errors.New("store.max_attempts must be at least 1"))
	}

	if c.Escalation.Increment <= 0 || c.Escalation.DecayStep < 0 || c.Escalation.ResetAmount < 0 {
		errs = append(errs, errors.New("escalation increments must be positive"))
	}
	if c.Policy.DefaultThreshold < 30 || c.Policy.DefaultThreshold > 100 {
		errs = append(errs, fmt.Errorf("policy.default_threshold must be between 30 and 100, got %d", c.Policy.DefaultThreshold))
	}

	return errors.Join(errs...)
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.BodyLimit == "" {
		cfg.Server.BodyLimit = "64K"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "0.1.0"
	}

	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = Duration(15 * time.Second)
	}
	if cfg.Generation.RewriteTimeout == 0 {
		cfg.Generation.RewriteTimeout = Duration(15 * time.Second)
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreSQLite
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "~/.local/share/mediatord/profiles.db"
	}
	if cfg.Store.MaxAttempts == 0 {
		cfg.Store.MaxAttempts = 3
	}

	if cfg.Escalation.Increment == 0 {
		cfg.Escalation.Increment = 10
	}
	if cfg.Escalation.DecayAfter == 0 {
		cfg.Escalation.DecayAfter = Duration(5 * time.Minute)
	}
	if cfg.Escalation.DecayStep == 0 {
		cfg.Escalation.DecayStep = 1
	}
	if cfg.Escalation.ResetAmount == 0 {
		cfg.Escalation.ResetAmount = 20
	}
	if cfg.Escalation.HistoryLimit == 0 {
		cfg.Escalation.HistoryLimit = 20
	}

	if cfg.Policy.DefaultThreshold == 0 {
		cfg.Policy.DefaultThreshold = 60
	}
	if cfg.Policy.HistoryLimit == 0 {
		cfg.Policy.HistoryLimit = 20
	}
	if cfg.Policy.UnhelpfulStep == 0 {
		cfg.Policy.UnhelpfulStep = 5
	}
	if cfg.Policy.HelpfulStep == 0 {
		cfg.Policy.HelpfulStep = 2
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "mediation"
	}
}
