package ai

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Attempt records one model tried during a fallback run.
type Attempt struct {
	Model string `json:"model"`
	Error string `json:"error,omitempty"`
}

// dedupeModels returns models in order without blanks or repeats.
func dedupeModels(models []string) []string {
	seen := make(map[string]bool, len(models))
	out := make([]string, 0, len(models))
	for _, m := range models {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// completeWithFallback tries each model in turn while the failure is
// model_unavailable. Key and quota errors stop the run immediately.
func completeWithFallback(ctx context.Context, p Provider, models []string, req Request, log logrus.FieldLogger) (string, string, error) {
	var lastErr error
	for _, model := range dedupeModels(models) {
		req.Model = model
		out, err := p.Complete(ctx, req)
		if err == nil {
			return out, model, nil
		}
		lastErr = Classify(p.Name(), model, err)
		if !IsKind(lastErr, KindModelUnavailable) {
			return "", model, lastErr
		}
		log.WithFields(logrus.Fields{"provider": p.Name(), "model": model}).
			WithError(lastErr).Warn("model unavailable, trying next")
	}
	if lastErr == nil {
		lastErr = newError(KindModelUnavailable, p.Name(), "", "no models configured", nil)
	}
	return "", "", lastErr
}

// streamWithFallback is completeWithFallback for streaming calls. Once a
// chunk has been delivered the run is committed to that model.
func streamWithFallback(ctx context.Context, p Provider, models []string, req Request, fn func(string) error, log logrus.FieldLogger) (string, error) {
	var lastErr error
	for _, model := range dedupeModels(models) {
		req.Model = model
		emitted := false
		err := p.Stream(ctx, req, func(chunk string) error {
			emitted = true
			return fn(chunk)
		})
		if err == nil {
			return model, nil
		}
		lastErr = Classify(p.Name(), model, err)
		if emitted || !IsKind(lastErr, KindModelUnavailable) {
			return model, lastErr
		}
		log.WithFields(logrus.Fields{"provider": p.Name(), "model": model}).
			WithError(lastErr).Warn("model unavailable, trying next")
	}
	if lastErr == nil {
		lastErr = newError(KindModelUnavailable, p.Name(), "", "no models configured", nil)
	}
	return "", lastErr
}
