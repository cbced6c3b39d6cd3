package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/matthewjhunter/dossier/internal/logging"
	"github.com/matthewjhunter/dossier/internal/storage"
	"github.com/sirupsen/logrus"
)

// Setting keys read by the processor.
const (
	SettingProvider          = "ai.provider"
	SettingModel             = "ai.model"
	SettingFallbackModels    = "ai.fallback_models"
	SettingAPIKey            = "ai.api_key"
	SettingTemperaturePrefix = "ai.temperature."
	SettingToneProfile       = "style.tone_profile"
)

// SettingsStore reads per-install overrides.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// Config is the install-wide AI configuration from the config file.
type Config struct {
	Provider       string
	Model          string
	FallbackModels []string
	// APIKeys and BaseURLs are keyed by provider name.
	APIKeys      map[string]string
	BaseURLs     map[string]string
	Temperatures map[string]float64
	Timeout      time.Duration
}

// Options is the configuration resolved for one call.
type Options struct {
	Provider    string   `json:"provider"`
	Models      []string `json:"models"`
	Temperature float64  `json:"temperature"`
	APIKey      string   `json:"-"`
	BaseURL     string   `json:"base_url,omitempty"`
}

// Processor runs the LLM operations.
type Processor struct {
	providers map[string]Provider
	prompts   *PromptLoader
	settings  SettingsStore
	cfg       Config
	log       logrus.FieldLogger
}

func NewProcessor(providers map[string]Provider, prompts *PromptLoader, settings SettingsStore, cfg Config, log logrus.FieldLogger) *Processor {
	if log == nil {
		log = logging.Discard()
	}
	return &Processor{
		providers: providers,
		prompts:   prompts,
		settings:  settings,
		cfg:       cfg,
		log:       log.WithField("component", "ai"),
	}
}

// Prompts returns the prompt loader.
func (p *Processor) Prompts() *PromptLoader { return p.prompts }

func (p *Processor) setting(ctx context.Context, key string) string {
	if p.settings == nil {
		return ""
	}
	v, ok, err := p.settings.GetSetting(ctx, key)
	if err != nil {
		p.log.WithError(err).WithField("key", key).Warn("failed to read setting")
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Resolve computes the provider, model list, temperature and credentials
// for operation op. Settings override the config file, which overrides
// built-in defaults.
func (p *Processor) Resolve(ctx context.Context, op string) (Options, error) {
	opts := Options{Provider: p.cfg.Provider}
	if v := p.setting(ctx, SettingProvider); v != "" {
		opts.Provider = v
	}
	if opts.Provider == "" {
		opts.Provider = "ollama"
	}
	if _, ok := p.providers[opts.Provider]; !ok {
		return opts, fmt.Errorf("unknown AI provider %q", opts.Provider)
	}

	model := p.cfg.Model
	if v := p.setting(ctx, SettingModel); v != "" {
		model = v
	}
	fallbacks := p.cfg.FallbackModels
	if v := p.setting(ctx, SettingFallbackModels); v != "" {
		fallbacks = splitModels(v)
	}
	opts.Models = dedupeModels(append([]string{model}, fallbacks...))

	opts.Temperature = p.temperature(ctx, op)

	opts.APIKey = p.cfg.APIKeys[opts.Provider]
	if v := p.setting(ctx, SettingAPIKey); v != "" {
		opts.APIKey = v
	}
	opts.BaseURL = p.cfg.BaseURLs[opts.Provider]
	return opts, nil
}

func (p *Processor) temperature(ctx context.Context, op string) float64 {
	if v := p.setting(ctx, SettingTemperaturePrefix+op); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil && t >= 0 && t <= 2 {
			return t
		}
		p.log.WithField("op", op).Warnf("ignoring invalid temperature setting %q", v)
	}
	if t, ok := p.cfg.Temperatures[op]; ok && t > 0 {
		return t
	}
	if t, ok := defaultTemperatures[op]; ok {
		return t
	}
	return 0.5
}

func splitModels(s string) []string {
	var out []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

func (p *Processor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.Timeout)
}

// Completion is the text of a finished call and the model that produced it.
type Completion struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (p *Processor) complete(ctx context.Context, op string, req Request) (*Completion, error) {
	opts, err := p.Resolve(ctx, op)
	if err != nil {
		return nil, err
	}
	req.Temperature = opts.Temperature
	req.APIKey = opts.APIKey
	req.BaseURL = opts.BaseURL

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	provider := p.providers[opts.Provider]
	text, model, err := completeWithFallback(ctx, provider, opts.Models, req, p.log)
	if err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{"op": op, "provider": opts.Provider, "model": model}).Debug("completion finished")
	return &Completion{Text: text, Provider: opts.Provider, Model: model}, nil
}

func (p *Processor) stream(ctx context.Context, op string, req Request, fn func(string) error) (*Completion, error) {
	opts, err := p.Resolve(ctx, op)
	if err != nil {
		return nil, err
	}
	req.Temperature = opts.Temperature
	req.APIKey = opts.APIKey
	req.BaseURL = opts.BaseURL

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var full strings.Builder
	provider := p.providers[opts.Provider]
	model, err := streamWithFallback(ctx, provider, opts.Models, req, func(chunk string) error {
		full.WriteString(chunk)
		return fn(chunk)
	}, p.log)
	if err != nil {
		return nil, err
	}
	return &Completion{Text: full.String(), Provider: opts.Provider, Model: model}, nil
}

func (p *Processor) invalidJSON(op string, c *Completion, err error) error {
	p.log.WithField("op", op).WithError(err).Debugf("unparseable response: %s", truncateText(c.Text, 500))
	return newError(KindUnknown, c.Provider, c.Model, "the model did not return valid JSON", err)
}

// Extraction is structured data pulled from a job posting.
type Extraction struct {
	Company          string   `json:"company"`
	Position         string   `json:"position"`
	Location         string   `json:"location"`
	Deadline         string   `json:"deadline"`
	Language         string   `json:"language"`
	ContactName      string   `json:"contact_name"`
	ContactEmail     string   `json:"contact_email"`
	Responsibilities []string `json:"responsibilities"`
	Requirements     []string `json:"requirements"`
	NiceToHave       []string `json:"nice_to_have"`
	Summary          string   `json:"summary"`
}

// Extract pulls structured fields out of a job posting.
func (p *Processor) Extract(ctx context.Context, jobText string) (*Extraction, error) {
	prompt, err := p.prompts.render(ctx, string(PromptExtract), map[string]string{
		"JobText": truncateText(jobText, 20000),
	})
	if err != nil {
		return nil, err
	}
	c, err := p.complete(ctx, string(PromptExtract), Request{Prompt: prompt, JSON: true})
	if err != nil {
		return nil, err
	}
	var ex Extraction
	if err := json.Unmarshal([]byte(extractJSON(c.Text)), &ex); err != nil {
		return nil, p.invalidJSON("extract", c, err)
	}
	ex.Company = strings.TrimSpace(ex.Company)
	ex.Position = strings.TrimSpace(ex.Position)
	if _, err := storage.ParseDate(ex.Deadline); err != nil {
		ex.Deadline = ""
	}
	return &ex, nil
}

type MatchInput struct {
	Resume  string
	Profile *storage.UserProfile
	JobText string
}

type MatchResult struct {
	Score     int      `json:"score"`
	Strengths []string `json:"strengths"`
	Gaps      []string `json:"gaps"`
	Summary   string   `json:"summary"`
}

// Match scores how well the candidate fits a posting.
func (p *Processor) Match(ctx context.Context, in MatchInput) (*MatchResult, error) {
	prompt, err := p.prompts.render(ctx, string(PromptMatch), map[string]interface{}{
		"Resume":  truncateText(in.Resume, 15000),
		"Profile": in.Profile,
		"JobText": truncateText(in.JobText, 15000),
	})
	if err != nil {
		return nil, err
	}
	c, err := p.complete(ctx, string(PromptMatch), Request{Prompt: prompt, JSON: true})
	if err != nil {
		return nil, err
	}
	var mr MatchResult
	if err := json.Unmarshal([]byte(extractJSON(c.Text)), &mr); err != nil {
		return nil, p.invalidJSON("match", c, err)
	}
	mr.Score = max(0, min(100, mr.Score))
	if mr.Strengths == nil {
		mr.Strengths = []string{}
	}
	if mr.Gaps == nil {
		mr.Gaps = []string{}
	}
	return &mr, nil
}

// LetterInput is everything generation draws on.
type LetterInput struct {
	Company           string
	Position          string
	ContactName       string
	JobText           string
	Resume            string
	Profile           *storage.UserProfile
	MatchSummary      string
	MotivationAnswers string
	CompanyInfo       string
	ToneProfile       string
	Samples           []string
}

// Generate streams a cover letter draft to fn and returns the full text.
func (p *Processor) Generate(ctx context.Context, in LetterInput, fn func(string) error) (*Completion, error) {
	samples := make([]string, 0, len(in.Samples))
	for _, s := range in.Samples {
		samples = append(samples, truncateText(s, 4000))
	}
	prompt, err := p.prompts.render(ctx, string(PromptGenerate), map[string]interface{}{
		"Company":           in.Company,
		"Position":          in.Position,
		"ContactName":       in.ContactName,
		"JobText":           truncateText(in.JobText, 15000),
		"Resume":            truncateText(in.Resume, 15000),
		"Profile":           in.Profile,
		"MatchSummary":      in.MatchSummary,
		"MotivationAnswers": in.MotivationAnswers,
		"CompanyInfo":       truncateText(in.CompanyInfo, 5000),
		"ToneProfile":       in.ToneProfile,
		"Samples":           samples,
	})
	if err != nil {
		return nil, err
	}
	return p.stream(ctx, string(PromptGenerate), Request{Prompt: prompt}, fn)
}

type ChatInput struct {
	Company  string
	Position string
	Letter   string
	JobText  string
	Messages []Message
}

// Chat streams an assistant reply about the current letter.
func (p *Processor) Chat(ctx context.Context, in ChatInput, fn func(string) error) (*Completion, error) {
	if len(in.Messages) == 0 {
		return nil, fmt.Errorf("no messages")
	}
	system, err := p.prompts.render(ctx, promptChat, map[string]string{
		"Company":  in.Company,
		"Position": in.Position,
		"Letter":   in.Letter,
		"JobText":  truncateText(in.JobText, 10000),
	})
	if err != nil {
		return nil, err
	}
	return p.stream(ctx, promptChat, Request{System: system, Messages: in.Messages}, fn)
}

// MotivationQuestions asks the model for questions whose answers personalize
// the letter.
func (p *Processor) MotivationQuestions(ctx context.Context, company, position, jobText string, profile *storage.UserProfile) ([]string, error) {
	prompt, err := p.prompts.render(ctx, promptMotivation, map[string]interface{}{
		"Company":  company,
		"Position": position,
		"JobText":  truncateText(jobText, 10000),
		"Profile":  profile,
	})
	if err != nil {
		return nil, err
	}
	c, err := p.complete(ctx, promptMotivation, Request{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	var questions []string
	if err := json.Unmarshal([]byte(extractJSON(c.Text)), &questions); err != nil {
		questions = questionLines(c.Text)
	}
	if len(questions) == 0 {
		return nil, p.invalidJSON("motivation", c, fmt.Errorf("no questions in response"))
	}
	return questions, nil
}

// questionLines salvages a plain list of questions.
func questionLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.) ")
		if strings.HasSuffix(line, "?") {
			out = append(out, line)
		}
	}
	return out
}

// Suggestion is a proposed replacement for one passage of a letter.
type Suggestion struct {
	OriginalText  string `json:"original_text"`
	SuggestedText string `json:"suggested_text"`
	Reason        string `json:"reason"`
}

// SuggestEdits proposes passage replacements. Suggestions whose original
// text does not appear verbatim in the letter are dropped.
func (p *Processor) SuggestEdits(ctx context.Context, letter, jobText string) ([]Suggestion, error) {
	prompt, err := p.prompts.render(ctx, promptSuggestions, map[string]string{
		"Letter":  letter,
		"JobText": truncateText(jobText, 10000),
	})
	if err != nil {
		return nil, err
	}
	c, err := p.complete(ctx, promptSuggestions, Request{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	var raw []Suggestion
	if err := json.Unmarshal([]byte(extractJSON(c.Text)), &raw); err != nil {
		return nil, p.invalidJSON("suggestions", c, err)
	}
	out := make([]Suggestion, 0, len(raw))
	for _, s := range raw {
		s.OriginalText = strings.TrimSpace(s.OriginalText)
		if s.OriginalText == "" || s.SuggestedText == "" || !strings.Contains(letter, s.OriginalText) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// AnalyzeTone describes the writing style shared by the samples.
func (p *Processor) AnalyzeTone(ctx context.Context, samples []string) (*Completion, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to analyze")
	}
	trimmed := make([]string, 0, len(samples))
	for _, s := range samples {
		trimmed = append(trimmed, truncateText(s, 4000))
	}
	prompt, err := p.prompts.render(ctx, string(PromptToneAnalysis), map[string]interface{}{"Samples": trimmed})
	if err != nil {
		return nil, err
	}
	c, err := p.complete(ctx, string(PromptToneAnalysis), Request{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	c.Text = strings.TrimSpace(c.Text)
	return c, nil
}
