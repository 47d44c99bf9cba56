package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_KEY", testKey)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.Server.Addr())
	assert.Equal(t, int64(50<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "auto", cfg.Summarizer.Provider)
	assert.Equal(t, "llama3.2", cfg.Summarizer.OllamaModel)
	assert.Equal(t, 2*time.Second, cfg.Summarizer.PingTimeout)
	assert.Equal(t, 30*time.Second, cfg.Summarizer.CallTimeout)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.Equal(t, 4, cfg.Survey.LoaderConcurrency)
	assert.False(t, cfg.Survey.TagSourceSheet)
	assert.Zero(t, cfg.Survey.MaxRowsPerSheet)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_KEY", testKey)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SERVER_CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("SUMMARIZER_PROVIDER", "none")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SURVEY_TAG_SOURCE_SHEET", "true")
	t.Setenv("SURVEY_MAX_ROWS_PER_SHEET", "500")
	t.Setenv("SURVEY_LOADER_CONCURRENCY", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 45*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "none", cfg.Summarizer.Provider)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.Survey.TagSourceSheet)
	assert.Equal(t, 500, cfg.Survey.MaxRowsPerSheet)
	assert.Equal(t, 2, cfg.Survey.LoaderConcurrency)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"short session key", map[string]string{"SESSION_KEY": "short"}},
		{"unknown provider", map[string]string{"SESSION_KEY": testKey, "SUMMARIZER_PROVIDER": "gemini"}},
		{"negative row limit", map[string]string{"SESSION_KEY": testKey, "SURVEY_MAX_ROWS_PER_SHEET": "-1"}},
		{"openai without key", map[string]string{"SESSION_KEY": testKey, "SUMMARIZER_PROVIDER": "openai", "OPENAI_API_KEY": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "10")
	assert.Equal(t, 7, getEnvAsInt("X_INT", 7))
	assert.Equal(t, time.Second, getEnvAsDuration("X_DUR", time.Second))
	assert.Nil(t, getEnvAsList("X_UNSET_LIST", nil))
}
