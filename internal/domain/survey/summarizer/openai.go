package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// chatClient drives an OpenAI-compatible chat completion API.
type chatClient struct {
	name        string
	client      *openai.Client
	model       string
	callTimeout time.Duration
	logger      *slog.Logger
}

func newChatClient(name, apiKey, baseURL, model string, callTimeout time.Duration, logger *slog.Logger) chatClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return chatClient{
		name:        name,
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

func (c *chatClient) Name() string {
	return c.name
}

// Ping lists models to confirm the endpoint answers.
func (c *chatClient) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: %s ping: %w", ErrUnavailable, c.name, err)
	}
	return nil
}

func (c *chatClient) Summarize(ctx context.Context, r Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	p := buildPrompt(r)
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.system},
			{Role: openai.ChatMessageRoleUser, Content: p.user},
		},
		Temperature: temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s returned no choices", ErrUnavailable, c.name)
	}

	c.logger.Debug("narrative generated",
		slog.String("backend", c.name),
		slog.String("model", c.model),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
		slog.Duration("elapsed", time.Since(start)))

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: %s returned no text", ErrUnavailable, c.name)
	}
	return text, nil
}

// OpenAI calls the OpenAI chat completion API or any compatible server.
type OpenAI struct {
	chatClient
}

// NewOpenAI creates a chat completion backend. baseURL may point at any
// OpenAI-compatible server; "" keeps the public endpoint.
func NewOpenAI(apiKey, model, baseURL string, callTimeout time.Duration, logger *slog.Logger) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{newChatClient("openai", apiKey, baseURL, model, callTimeout, logger)}
}
