// Package llm answers questions over retrieved context through an
// OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoAPIKey is returned by New when the configured environment variable
// holds no key.
var ErrNoAPIKey = errors.New("llm: api key environment variable is empty")

const systemPrompt = `You are a helpful assistant. Answer the user's question using only the provided context. If the context does not contain the answer, say that you don't know.`

// Config selects the chat model and endpoint.
type Config struct {
	APIKeyEnv   string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Client wraps a chat completion backend behind a single Answer call.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// New builds a chat client from cfg. A missing API key fails here rather
// than on the first request.
func New(cfg Config) (*Client, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(keyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoAPIKey, keyEnv)
	}

	apiCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Answer asks the model the query with contextBlock as its only source of
// knowledge.
func (c *Client) Answer(ctx context.Context, query, contextBlock string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Context:\n" + contextBlock + "\n\nQuestion: " + query},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: empty completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
