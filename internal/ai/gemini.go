package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider calls the Gemini API. A client is built per request from
// the request's API key.
type GeminiProvider struct{}

func NewGeminiProvider() *GeminiProvider { return &GeminiProvider{} }

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) client(ctx context.Context, req Request) (*genai.Client, error) {
	if req.APIKey == "" {
		return nil, newError(KindAPIKey, p.Name(), req.Model, "no Gemini API key configured", nil)
	}
	cc := &genai.ClientConfig{
		APIKey:  req.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if req.BaseURL != "" {
		cc.HTTPOptions.BaseURL = req.BaseURL
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return c, nil
}

func (p *GeminiProvider) content(req Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	var contents []*genai.Content
	for _, m := range req.turns() {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	return contents, cfg
}

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	c, err := p.client(ctx, req)
	if err != nil {
		return "", err
	}
	contents, cfg := p.content(req)
	resp, err := c.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return "", p.classify(req.Model, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", newError(KindUnknown, p.Name(), req.Model, "no candidates in response", nil)
	}
	return resp.Text(), nil
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request, fn func(string) error) error {
	c, err := p.client(ctx, req)
	if err != nil {
		return err
	}
	contents, cfg := p.content(req)
	for resp, err := range c.Models.GenerateContentStream(ctx, req.Model, contents, cfg) {
		if err != nil {
			return p.classify(req.Model, err)
		}
		if text := resp.Text(); text != "" {
			if err := fn(text); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *GeminiProvider) classify(model string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newError(classifyStatus(apiErr.Code, apiErr.Message+" "+apiErr.Status), p.Name(), model, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return newError(classifyStatus(apiErrPtr.Code, apiErrPtr.Message+" "+apiErrPtr.Status), p.Name(), model, apiErrPtr.Message, err)
	}
	return Classify(p.Name(), model, err)
}
