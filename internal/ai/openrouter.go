package ai

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// DefaultOpenRouterURL is the OpenAI-compatible OpenRouter endpoint.
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider calls an OpenAI-compatible chat completions API.
type OpenRouterProvider struct {
	client  *resty.Client
	baseURL string
}

func NewOpenRouterProvider(baseURL string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	return &OpenRouterProvider{
		client:  resty.New().SetHeader("X-Title", "dossier"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (p *OpenRouterProvider) Name() string { return "openrouter" }

func (p *OpenRouterProvider) body(req Request, stream bool) map[string]interface{} {
	msgs := make([]map[string]string, 0, len(req.Messages)+2)
	if req.System != "" {
		msgs = append(msgs, map[string]string{"role": RoleSystem, "content": req.System})
	}
	for _, m := range req.turns() {
		msgs = append(msgs, map[string]string{"role": m.Role, "content": m.Content})
	}
	body := map[string]interface{}{
		"model":       req.Model,
		"messages":    msgs,
		"temperature": req.Temperature,
		"stream":      stream,
	}
	if req.JSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	return body
}

func (p *OpenRouterProvider) request(ctx context.Context, req Request) (*resty.Request, string, error) {
	if req.APIKey == "" {
		return nil, "", newError(KindAPIKey, p.Name(), req.Model, "no OpenRouter API key configured", nil)
	}
	base := p.baseURL
	if req.BaseURL != "" {
		base = strings.TrimRight(req.BaseURL, "/")
	}
	r := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+req.APIKey).
		SetHeader("Content-Type", "application/json")
	return r, base + "/chat/completions", nil
}

func (p *OpenRouterProvider) Complete(ctx context.Context, req Request) (string, error) {
	r, endpoint, err := p.request(ctx, req)
	if err != nil {
		return "", err
	}
	resp, err := r.SetBody(p.body(req, false)).Post(endpoint)
	if err != nil {
		return "", Classify(p.Name(), req.Model, err)
	}
	if resp.IsError() {
		return "", p.httpError(req.Model, resp.StatusCode(), resp.String())
	}
	body := resp.String()
	if msg := gjson.Get(body, "error.message"); msg.Exists() {
		return "", p.httpError(req.Model, int(gjson.Get(body, "error.code").Int()), body)
	}
	text := gjson.Get(body, "choices.0.message.content")
	if !text.Exists() {
		return "", newError(KindUnknown, p.Name(), req.Model, "no choices in response", nil)
	}
	return text.String(), nil
}

// Stream reads server-sent events, one JSON chunk per "data:" line.
func (p *OpenRouterProvider) Stream(ctx context.Context, req Request, fn func(string) error) error {
	r, endpoint, err := p.request(ctx, req)
	if err != nil {
		return err
	}
	resp, err := r.SetBody(p.body(req, true)).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Post(endpoint)
	if err != nil {
		return Classify(p.Name(), req.Model, err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() >= 400 {
		var b strings.Builder
		sc := bufio.NewScanner(raw)
		for sc.Scan() {
			b.WriteString(sc.Text())
		}
		return p.httpError(req.Model, resp.StatusCode(), b.String())
	}

	sc := bufio.NewScanner(raw)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil
		}
		if msg := gjson.Get(data, "error.message"); msg.Exists() {
			return p.httpError(req.Model, int(gjson.Get(data, "error.code").Int()), data)
		}
		if chunk := gjson.Get(data, "choices.0.delta.content").String(); chunk != "" {
			if err := fn(chunk); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Classify(p.Name(), req.Model, fmt.Errorf("stream read failed: %w", err))
	}
	return nil
}

func (p *OpenRouterProvider) httpError(model string, status int, body string) error {
	msg := gjson.Get(body, "error.message").String()
	if msg == "" {
		msg = truncateText(strings.TrimSpace(body), 300)
	}
	return newError(classifyStatus(status, msg), p.Name(), model, msg, fmt.Errorf("openrouter: HTTP %d: %s", status, msg))
}
