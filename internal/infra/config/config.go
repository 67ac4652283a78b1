// Package config provides configuration loading from YAML files, with
// environment-variable overrides for the fields spec §6 calls out as
// deployment-sensitive.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the engine's full configuration (spec §6's field list plus
// ambient logging/retry/rate-limit knobs).
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tables    TablesConfig    `yaml:"tables"`
	Streaming StreamingConfig `yaml:"streaming"`
	Session   SessionConfig   `yaml:"session"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig is the HTTP ingress configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":8080"`
}

// TablesConfig names the four store tables (spec §6).
type TablesConfig struct {
	Sensors      string `yaml:"sensors_table" default:"Sensors" validate:"required"`
	Users        string `yaml:"users_table" default:"Users" validate:"required"`
	Sessions     string `yaml:"sessions_table" default:"Sessions" validate:"required"`
	MotionEvents string `yaml:"motion_events_table" default:"MotionEvents" validate:"required"`
	SecretName   string `yaml:"spotify_secret_name" default:"spotify-credentials" validate:"required"`
}

// StreamingConfig carries the streaming API's OAuth client credentials and
// this process's retry/rate-limit knobs (ambient — not in spec.md's field
// list, but every outbound call needs them).
type StreamingConfig struct {
	ClientID           string `yaml:"client_id" validate:"required"`
	ClientSecret       string `yaml:"client_secret" validate:"required"`
	MaxRetries         int    `yaml:"max_retries" default:"3" validate:"gte=1,lte=10"`
	RateLimitPerSecond int    `yaml:"rate_limit_per_second" default:"10" validate:"gte=1"`
	RateLimitBurst     int    `yaml:"rate_limit_burst" default:"10" validate:"gte=1"`
}

// SessionConfig is the session-lifecycle defaults (spec §6).
type SessionConfig struct {
	DefaultTimeoutMinutes  int `yaml:"default_timeout_minutes" default:"5" validate:"gte=1,lte=120"`
	DefaultDebounceMinutes int `yaml:"default_debounce_minutes" default:"2" validate:"gte=1,lte=60"`
	TTLDays                int `yaml:"session_ttl_days" default:"30" validate:"gte=1"`
}

// RefreshConfig configures the Token Refresher (spec §4.5).
type RefreshConfig struct {
	IntervalMinutes int `yaml:"interval_minutes" default:"30" validate:"gte=1"`
	BufferMinutes   int `yaml:"buffer_minutes" default:"5" validate:"gte=1"`
}

// SweepConfig configures the Timeout Sweeper (spec §4.4).
type SweepConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" default:"60" validate:"gte=1"`
}

// LogConfig configures the zerolog writer (spec §6: `LOG_LEVEL`).
type LogConfig struct {
	Level string `yaml:"level" default:"info"`
}

// Load reads path as YAML, applies environment-variable overrides, fills in
// defaults via creasty/defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv lets the deployment-sensitive fields spec §6 names be
// supplied out-of-band instead of checked into the YAML file.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SENSORS_TABLE"); v != "" {
		c.Tables.Sensors = v
	}
	if v := os.Getenv("USERS_TABLE"); v != "" {
		c.Tables.Users = v
	}
	if v := os.Getenv("SESSIONS_TABLE"); v != "" {
		c.Tables.Sessions = v
	}
	if v := os.Getenv("MOTION_EVENTS_TABLE"); v != "" {
		c.Tables.MotionEvents = v
	}
	if v := os.Getenv("SPOTIFY_SECRET_NAME"); v != "" {
		c.Tables.SecretName = v
	}
	if v := os.Getenv("STREAMING_CLIENT_ID"); v != "" {
		c.Streaming.ClientID = v
	}
	if v := os.Getenv("STREAMING_CLIENT_SECRET"); v != "" {
		c.Streaming.ClientSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks structural invariants via go-playground/validator.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
