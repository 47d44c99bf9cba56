package summarizer

import (
	"log/slog"
	"strings"
	"time"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama3.2"
	DefaultPingTimeout = 2 * time.Second
	DefaultCallTimeout = 30 * time.Second
)

// ollamaAPIKey is sent as the bearer token; Ollama ignores it.
const ollamaAPIKey = "ollama"

// Ollama calls a local Ollama server through its OpenAI-compatible API
// mounted under /v1.
type Ollama struct {
	chatClient
}

// NewOllama creates an Ollama backend for the server at baseURL, e.g.
// http://localhost:11434. Each call is bounded by callTimeout.
func NewOllama(baseURL, model string, callTimeout time.Duration, logger *slog.Logger) *Ollama {
	if model == "" {
		model = DefaultOllamaModel
	}
	base := strings.TrimRight(baseURL, "/") + "/v1"
	return &Ollama{newChatClient("ollama", ollamaAPIKey, base, model, callTimeout, logger)}
}
