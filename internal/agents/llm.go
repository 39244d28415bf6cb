// Package agents provides the language-model collaborator used by the prompt
// and chat operations.
package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"signalbot/internal/errors"
	"signalbot/internal/logging"
	"signalbot/internal/models"
)

// DefaultModel is the model identifier used when none is configured.
const DefaultModel = "llama3.1:8b"

// LanguageModel answers prompts and chat conversations. Responses are
// returned verbatim.
type LanguageModel interface {
	// Complete sends a single user prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	// Chat sends an ordered conversation.
	Chat(ctx context.Context, messages []models.ChatMessage) (string, error)
	// Model returns the model identifier in use.
	Model() string
}

// ClientConfig configures an OpenAIClient.
type ClientConfig struct {
	APIKey  string
	BaseURL string // any OpenAI-compatible endpoint; empty means api.openai.com
	Model   string
}

// OpenAIClient implements LanguageModel using the OpenAI chat completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

// NewOpenAIClient creates a new LLM client.
func NewOpenAIClient(cfg ClientConfig, logger zerolog.Logger) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		model:  model,
		logger: logging.WithOperation(logger, "llm"),
	}
}

// Model returns the model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends a prompt to the LLM and returns the response.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := c.complete(ctx, "prompt", []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return "", errors.NewLLMError("prompt", c.model, err)
	}
	return out, nil
}

// Chat sends a conversation to the LLM and returns the assistant's reply.
func (c *OpenAIClient) Chat(ctx context.Context, messages []models.ChatMessage) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    toOpenAIRole(m.Role),
			Content: m.Content,
		})
	}

	out, err := c.complete(ctx, "chat", msgs)
	if err != nil {
		return "", errors.NewLLMError("chat", c.model, err)
	}
	return out, nil
}

func (c *OpenAIClient) complete(ctx context.Context, op string, msgs []openai.ChatCompletionMessage) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	logging.LogAPICall(c.logger, "POST", op, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIRole(r models.ChatRole) string {
	switch r {
	case models.RoleSystem:
		return openai.ChatMessageRoleSystem
	case models.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
