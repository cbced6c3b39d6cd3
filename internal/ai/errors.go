package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindAPIKey           ErrorKind = "api_key"
	KindQuota            ErrorKind = "quota"
	KindModelUnavailable ErrorKind = "model_unavailable"
	KindUnknown          ErrorKind = "unknown"
)

// Error is a classified provider failure.
type Error struct {
	Kind     ErrorKind `json:"kind"`
	Provider string    `json:"-"`
	Model    string    `json:"-"`
	Message  string    `json:"message"`
	HelpURL  string    `json:"help_url,omitempty"`
	Err      error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s (%s/%s): %s", e.Kind, e.Provider, e.Model, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAPIKey:
		return http.StatusUnauthorized
	case KindQuota:
		return http.StatusTooManyRequests
	case KindModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

var helpURLs = map[string]map[ErrorKind]string{
	"gemini": {
		KindAPIKey: "https://aistudio.google.com/app/apikey",
		KindQuota:  "https://ai.google.dev/gemini-api/docs/rate-limits",
	},
	"openrouter": {
		KindAPIKey: "https://openrouter.ai/settings/keys",
		KindQuota:  "https://openrouter.ai/settings/credits",
	},
	"ollama": {
		KindModelUnavailable: "https://ollama.com/library",
	},
}

var kindMessages = map[ErrorKind]string{
	KindAPIKey:           "the API key is missing or was rejected",
	KindQuota:            "the provider quota or rate limit was exceeded",
	KindModelUnavailable: "the model is not available",
}

// classifyStatus maps an HTTP status and provider message to a kind.
func classifyStatus(status int, msg string) ErrorKind {
	lower := strings.ToLower(msg)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden,
		strings.Contains(lower, "api key"), strings.Contains(lower, "api_key"):
		return KindAPIKey
	case status == http.StatusTooManyRequests || status == http.StatusPaymentRequired,
		strings.Contains(lower, "quota"), strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "resource_exhausted"):
		return KindQuota
	case status == http.StatusNotFound || status == http.StatusServiceUnavailable,
		strings.Contains(lower, "not found"), strings.Contains(lower, "overloaded"),
		strings.Contains(lower, "unavailable"), strings.Contains(lower, "no endpoints"):
		return KindModelUnavailable
	}
	return KindUnknown
}

func newError(kind ErrorKind, provider, model, detail string, err error) *Error {
	msg := kindMessages[kind]
	switch {
	case msg == "":
		msg = detail
	case detail != "":
		msg += ": " + detail
	}
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return &Error{
		Kind:     kind,
		Provider: provider,
		Model:    model,
		Message:  msg,
		HelpURL:  helpURLs[provider][kind],
		Err:      err,
	}
}

// Classify converts err into an *Error. Errors already classified pass
// through; context cancellation is returned unchanged.
func Classify(provider, model string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr
	}
	return newError(classifyStatus(0, err.Error()), provider, model, err.Error(), err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var aiErr *Error
	return errors.As(err, &aiErr) && aiErr.Kind == kind
}
