// Package config loads the service configuration.
//
// Precedence, lowest first: built-in defaults, the optional YAML file, then
// environment variables (including those loaded from .env).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Collaborator backends.
const (
	CollaboratorGemini = "gemini"
	CollaboratorHTTP   = "http"
)

// Config holds all application configuration.
type Config struct {
	// Server
	Port        int    `yaml:"port" validate:"min=1,max=65535"`
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error"`
	Environment string `yaml:"environment" validate:"oneof=development production"`

	// Collaborator
	Collaborator  string `yaml:"collaborator" validate:"oneof=gemini http"`
	GeminiAPIKey  string `yaml:"gemini_api_key" validate:"required_if=Collaborator gemini"`
	GeminiModel   string `yaml:"gemini_model" validate:"required"`
	AgentAPIURL   string `yaml:"agent_api_url" validate:"required_if=Collaborator http,omitempty,url"`
	CoachAgentURL string `yaml:"coach_agent_url" validate:"omitempty,url"`

	// HTTP client and resilience
	HTTPTimeout         time.Duration `yaml:"http_timeout" validate:"gt=0"`
	CollaboratorTimeout time.Duration `yaml:"collaborator_timeout" validate:"gt=0"`
	MaxConcurrency      int           `yaml:"max_concurrency" validate:"min=1"`

	// Sessions
	SessionTTL         time.Duration `yaml:"session_ttl" validate:"gt=0"`
	CoachReplyDelay    time.Duration `yaml:"coach_reply_delay" validate:"min=0"`
	CalendarTimezone   string        `yaml:"calendar_timezone" validate:"omitempty,timezone"`
	MaxImageBytes      int           `yaml:"max_image_bytes" validate:"min=1024"`
	DefaultDisplayName string        `yaml:"default_display_name" validate:"required,max=64"`

	// Observability; an empty endpoint disables trace export.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:        8080,
		LogLevel:    "info",
		Environment: "production",

		Collaborator:  CollaboratorGemini,
		GeminiModel:   "gemini-2.5-flash",
		AgentAPIURL:   "http://localhost:8090",
		CoachAgentURL: "",

		HTTPTimeout:         10 * time.Second,
		CollaboratorTimeout: 60 * time.Second,
		MaxConcurrency:      50,

		SessionTTL:         30 * time.Minute,
		CoachReplyDelay:    1200 * time.Millisecond,
		CalendarTimezone:   "",
		MaxImageBytes:      8 << 20,
		DefaultDisplayName: "Melissa",
	}
}

// LoadDotEnv loads a .env file without overriding variables already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvInt("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.Collaborator = getEnv("COLLABORATOR", c.Collaborator)
	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = getEnv("GEMINI_MODEL", c.GeminiModel)
	c.AgentAPIURL = getEnv("AGENT_API_URL", c.AgentAPIURL)
	c.CoachAgentURL = getEnv("COACH_AGENT_URL", c.CoachAgentURL)

	c.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", c.HTTPTimeout)
	c.CollaboratorTimeout = getEnvDuration("COLLABORATOR_TIMEOUT", c.CollaboratorTimeout)
	c.MaxConcurrency = getEnvInt("MAX_CONCURRENCY", c.MaxConcurrency)

	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)
	c.CoachReplyDelay = getEnvDuration("COACH_REPLY_DELAY", c.CoachReplyDelay)
	c.CalendarTimezone = getEnv("CALENDAR_TIMEZONE", c.CalendarTimezone)
	c.MaxImageBytes = getEnvInt("MAX_IMAGE_BYTES", c.MaxImageBytes)
	c.DefaultDisplayName = getEnv("DEFAULT_DISPLAY_NAME", c.DefaultDisplayName)

	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]error, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Errorf("%s: failed %q (value %v)", fe.Field(), fe.ActualTag(), redact(fe)))
			}
			return fmt.Errorf("invalid config: %w", errors.Join(msgs...))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func redact(fe validator.FieldError) any {
	if fe.Field() == "GeminiAPIKey" {
		return "<redacted>"
	}
	return fe.Value()
}

// Development reports whether development behavior (console logs, DPanic
// panics) is on.
func (c *Config) Development() bool {
	return c.Environment == "development"
}

// Location returns the calendar zone, the process-local zone when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.CalendarTimezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.CalendarTimezone)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
