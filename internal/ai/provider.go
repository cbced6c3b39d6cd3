package ai

import (
	"context"
	"fmt"
)

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call. Credentials and endpoints travel with
// the request; providers hold no per-install configuration of their own.
type Request struct {
	Model       string
	Temperature float64
	APIKey      string
	BaseURL     string
	System      string
	// Prompt is a single user turn. When Messages is set it is appended
	// after them.
	Prompt   string
	Messages []Message
	// JSON asks the provider for a JSON-only response where supported.
	JSON bool
}

// turns returns the conversation without the system message.
func (r Request) turns() []Message {
	msgs := make([]Message, 0, len(r.Messages)+1)
	for _, m := range r.Messages {
		if m.Role == RoleSystem || m.Content == "" {
			continue
		}
		msgs = append(msgs, m)
	}
	if r.Prompt != "" {
		msgs = append(msgs, Message{Role: RoleUser, Content: r.Prompt})
	}
	return msgs
}

// Provider is a text-completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
	// Stream delivers the response incrementally. Returning an error from
	// fn aborts the stream.
	Stream(ctx context.Context, req Request, fn func(chunk string) error) error
}

// ProviderConfig holds the endpoints used to build the built-in providers.
type ProviderConfig struct {
	OllamaURL     string
	OpenRouterURL string
}

// NewProviders returns the built-in providers keyed by name.
func NewProviders(cfg ProviderConfig) (map[string]Provider, error) {
	ollama, err := NewOllamaProvider(cfg.OllamaURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	providers := map[string]Provider{}
	for _, p := range []Provider{ollama, NewGeminiProvider(), NewOpenRouterProvider(cfg.OpenRouterURL)} {
		providers[p.Name()] = p
	}
	return providers, nil
}
