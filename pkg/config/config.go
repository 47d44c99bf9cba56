package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Survey        SurveyConfig
	Summarizer    SummarizerConfig
	Session       SessionConfig
	Notify        NotifyConfig
	Observability ObservabilityConfig
	Logging       LoggingConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	CORSOrigins        []string
	RateLimitPerSecond float64
	RateLimitBurst     int
	MaxUploadBytes     int64
	ShutdownTimeout    time.Duration
}

// SurveyConfig overrides loading and analysis defaults. An empty RatingColumn
// keeps the standard course rating question.
type SurveyConfig struct {
	RatingColumn      string
	LoaderConcurrency int
	TagSourceSheet    bool
	// MaxRowsPerSheet truncates large sheets on load; 0 means unlimited.
	MaxRowsPerSheet int
}

// SummarizerConfig selects the narrative backend.
type SummarizerConfig struct {
	Provider      string
	OllamaURL     string
	OllamaModel   string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	PingTimeout   time.Duration
	CallTimeout   time.Duration
}

type SessionConfig struct {
	Key          string
	CookieName   string
	Secure       bool
	TTL          time.Duration
	EvictionSpec string
}

// NotifyConfig configures report emails. Email is disabled without an API key.
type NotifyConfig struct {
	ResendAPIKey string
	FromEmail    string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from environment variables, after loading any
// .env file in the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			CORSOrigins:        getEnvAsList("SERVER_CORS_ORIGINS", []string{"http://localhost:3000"}),
			RateLimitPerSecond: getEnvAsFloat("SERVER_RATE_LIMIT_PER_SECOND", 2),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 5),
			MaxUploadBytes:     int64(getEnvAsInt("SERVER_MAX_UPLOAD_MB", 50)) << 20,
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Survey: SurveyConfig{
			RatingColumn:      getEnv("SURVEY_RATING_COLUMN", ""),
			LoaderConcurrency: getEnvAsInt("SURVEY_LOADER_CONCURRENCY", 4),
			TagSourceSheet:    getEnvAsBool("SURVEY_TAG_SOURCE_SHEET", false),
			MaxRowsPerSheet:   getEnvAsInt("SURVEY_MAX_ROWS_PER_SHEET", 0),
		},
		Summarizer: SummarizerConfig{
			Provider:      getEnv("SUMMARIZER_PROVIDER", "auto"),
			OllamaURL:     getEnv("OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:   getEnv("OLLAMA_MODEL", "llama3.2"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			PingTimeout:   getEnvAsDuration("SUMMARIZER_PING_TIMEOUT", 2*time.Second),
			CallTimeout:   getEnvAsDuration("SUMMARIZER_CALL_TIMEOUT", 30*time.Second),
		},
		Session: SessionConfig{
			Key:          getEnv("SESSION_KEY", ""),
			CookieName:   getEnv("SESSION_COOKIE_NAME", "feedback_insights"),
			Secure:       getEnvAsBool("SESSION_COOKIE_SECURE", false),
			TTL:          getEnvAsDuration("SESSION_TTL", 2*time.Hour),
			EvictionSpec: getEnv("SESSION_EVICTION_SPEC", "*/10 * * * *"),
		},
		Notify: NotifyConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("RESEND_FROM_EMAIL", "Feedback Insights <reports@example.com>"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if len(cfg.Session.Key) < 32 {
		return nil, errors.New("SESSION_KEY must be at least 32 characters")
	}

	switch cfg.Summarizer.Provider {
	case "auto", "ollama", "openai", "none":
	default:
		return nil, fmt.Errorf("SUMMARIZER_PROVIDER %q is not one of auto, ollama, openai, none", cfg.Summarizer.Provider)
	}

	if cfg.Survey.MaxRowsPerSheet < 0 {
		return nil, errors.New("SURVEY_MAX_ROWS_PER_SHEET must not be negative")
	}

	if cfg.Summarizer.Provider == "openai" && cfg.Summarizer.OpenAIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required when SUMMARIZER_PROVIDER is openai")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
