package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "LOG_LEVEL", "ENVIRONMENT", "COLLABORATOR", "GEMINI_API_KEY", "GEMINI_MODEL",
	"AGENT_API_URL", "COACH_AGENT_URL", "HTTP_TIMEOUT", "COLLABORATOR_TIMEOUT", "MAX_CONCURRENCY",
	"SESSION_TTL", "COACH_REPLY_DELAY", "CALENDAR_TIMEZONE", "MAX_IMAGE_BYTES", "DEFAULT_DISPLAY_NAME",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
}

// clearEnv blanks every config variable for the test; getEnv treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "k")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, CollaboratorGemini, cfg.Collaborator)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, 1200*time.Millisecond, cfg.CoachReplyDelay)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "Melissa", cfg.DefaultDisplayName)
	assert.Empty(t, cfg.OTLPEndpoint)
	assert.False(t, cfg.Development())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoad_GeminiNeedsKey(t *testing.T) {
	clearEnv(t)

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GeminiAPIKey")
	assert.Contains(t, err.Error(), "<redacted>")
}

func TestLoad_YAMLUnderEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "elowen.yaml", `
port: 9000
collaborator: http
agent_api_url: http://agent.internal:8090
coach_reply_delay: 500ms
calendar_timezone: America/Sao_Paulo
environment: development
`)
	t.Setenv("PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port, "env wins over file")
	assert.Equal(t, CollaboratorHTTP, cfg.Collaborator)
	assert.Equal(t, "http://agent.internal:8090", cfg.AgentAPIURL)
	assert.Equal(t, 500*time.Millisecond, cfg.CoachReplyDelay)
	assert.True(t, cfg.Development())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"log level", map[string]string{"LOG_LEVEL": "loud"}, "LogLevel"},
		{"collaborator", map[string]string{"COLLABORATOR": "openai"}, "Collaborator"},
		{"agent url", map[string]string{"COLLABORATOR": "http", "AGENT_API_URL": "not a url"}, "AgentAPIURL"},
		{"timezone", map[string]string{"CALENDAR_TIMEZONE": "Mars/Olympus"}, "CalendarTimezone"},
		{"concurrency", map[string]string{"MAX_CONCURRENCY": "0"}, "MaxConcurrency"},
		{"display name", map[string]string{"DEFAULT_DISPLAY_NAME": strings.Repeat("x", 65)}, "DefaultDisplayName"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("GEMINI_API_KEY", "k")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeFile(t, "bad.yaml", "port: [nope"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	const marker = "ELOWEN_DOTENV_MARKER"
	t.Setenv("LOG_LEVEL", "warn")
	t.Cleanup(func() { os.Unsetenv(marker) })
	path := writeFile(t, ".env", "LOG_LEVEL=debug\n"+marker+"=loaded\n")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "warn", os.Getenv("LOG_LEVEL"), "existing variables are kept")
	assert.Equal(t, "loaded", os.Getenv(marker))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
