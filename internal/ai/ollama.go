package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaProvider talks to an Ollama server.
type OllamaProvider struct {
	client *api.Client
	base   *url.URL
}

// NewOllamaProvider returns a provider for the server at baseURL, or the one
// named by OLLAMA_HOST when baseURL is empty.
func NewOllamaProvider(baseURL string) (*OllamaProvider, error) {
	if baseURL == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
		return &OllamaProvider{client: client}, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &OllamaProvider{client: api.NewClient(u, http.DefaultClient), base: u}, nil
}

func (p *OllamaProvider) Name() string { return "ollama" }

// clientFor honours a per-request base URL override.
func (p *OllamaProvider) clientFor(req Request) *api.Client {
	if req.BaseURL == "" {
		return p.client
	}
	u, err := url.Parse(req.BaseURL)
	if err != nil {
		return p.client
	}
	return api.NewClient(u, http.DefaultClient)
}

func (p *OllamaProvider) chatRequest(req Request, stream bool) *api.ChatRequest {
	msgs := make([]api.Message, 0, len(req.Messages)+2)
	if req.System != "" {
		msgs = append(msgs, api.Message{Role: RoleSystem, Content: req.System})
	}
	for _, m := range req.turns() {
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Content})
	}
	cr := &api.ChatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
		},
	}
	if req.JSON {
		cr.Format = []byte(`"json"`)
	}
	return cr
}

func (p *OllamaProvider) Complete(ctx context.Context, req Request) (string, error) {
	var full strings.Builder
	err := p.clientFor(req).Chat(ctx, p.chatRequest(req, false), func(resp api.ChatResponse) error {
		full.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", p.classify(req.Model, err)
	}
	return full.String(), nil
}

func (p *OllamaProvider) Stream(ctx context.Context, req Request, fn func(string) error) error {
	err := p.clientFor(req).Chat(ctx, p.chatRequest(req, true), func(resp api.ChatResponse) error {
		if resp.Message.Content == "" {
			return nil
		}
		return fn(resp.Message.Content)
	})
	if err != nil {
		return p.classify(req.Model, err)
	}
	return nil
}

func (p *OllamaProvider) classify(model string, err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		return newError(classifyStatus(se.StatusCode, se.ErrorMessage), p.Name(), model, se.ErrorMessage, err)
	}
	return Classify(p.Name(), model, err)
}

// OllamaEmbedder computes embeddings with an Ollama embedding model.
type OllamaEmbedder struct {
	client *api.Client
	model  string
}

func NewOllamaEmbedder(p *OllamaProvider, model string) *OllamaEmbedder {
	return &OllamaEmbedder{client: p.client, model: model}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embed failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func (e *OllamaEmbedder) Model() string { return e.model }

// truncateText truncates text to maxLen bytes without splitting a rune.
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := maxLen
	for cut > 0 && !utf8RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

// extractJSON pulls the outermost JSON object or array out of a response
// that may carry surrounding prose or code fences.
func extractJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end > start {
		return text[start : end+1]
	}
	return text
}
