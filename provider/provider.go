// Package provider talks to hosted language models. The estimator uses a
// provider to turn a task title and description into a structured
// duration suggestion; nothing else in pacer depends on a model.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Role identifies the sender of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response is a completed provider response.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Provider is a chat completion backend.
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic", "openai", "mock").
	Name() string

	// Chat sends the conversation and returns the complete response.
	Chat(ctx context.Context, messages []Message) (*Response, error)
}

// APIError is returned when the remote API answers with a non-200 status.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// RateLimited reports whether the API rejected the call for quota reasons.
func (e *APIError) RateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// Config selects and configures a hosted provider.
type Config struct {
	Kind      string `yaml:"kind" json:"kind"`
	APIKey    string `yaml:"api_key" json:"-"`
	Model     string `yaml:"model" json:"model,omitempty"`
	BaseURL   string `yaml:"base_url" json:"base_url,omitempty"`
	MaxTokens int    `yaml:"max_tokens" json:"max_tokens,omitempty"`
}

// New builds the hosted provider named by cfg.Kind. client may be nil.
func New(cfg Config, client *http.Client) (Provider, error) {
	switch strings.ToLower(cfg.Kind) {
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{
			APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL,
			MaxTokens: cfg.MaxTokens, HTTPClient: client,
		}), nil
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL,
			MaxTokens: cfg.MaxTokens, HTTPClient: client,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}
