package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRouterComplete(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL)
	out, err := p.Complete(context.Background(), Request{
		Model:       "openai/gpt-4o-mini",
		APIKey:      "sk-test",
		System:      "be brief",
		Prompt:      "hi",
		Temperature: 0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
	assert.Equal(t, "openai/gpt-4o-mini", got["model"])
	msgs := got["messages"].([]interface{})
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
}

func TestOpenRouterStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": OPENROUTER PROCESSING\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Dear \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"team\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	var chunks []string
	err := NewOpenRouterProvider(srv.URL).Stream(context.Background(), Request{Model: "m", APIKey: "k", Prompt: "x"},
		func(c string) error {
			chunks = append(chunks, c)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dear ", "team"}, chunks)
}

func TestOpenRouterErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   ErrorKind
	}{
		{http.StatusUnauthorized, `{"error":{"message":"No auth credentials found","code":401}}`, KindAPIKey},
		{http.StatusPaymentRequired, `{"error":{"message":"Insufficient credits","code":402}}`, KindQuota},
		{http.StatusTooManyRequests, `{"error":{"message":"Rate limit exceeded","code":429}}`, KindQuota},
		{http.StatusNotFound, `{"error":{"message":"No endpoints found for foo/bar","code":404}}`, KindModelUnavailable},
		{http.StatusInternalServerError, `{"error":{"message":"boom","code":500}}`, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewOpenRouterProvider(srv.URL).Complete(context.Background(), Request{Model: "m", APIKey: "k", Prompt: "x"})
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.want), "got %v", err)
		})
	}
}

func TestOpenRouterMissingKey(t *testing.T) {
	_, err := NewOpenRouterProvider("http://127.0.0.1:1").Complete(context.Background(), Request{Model: "m", Prompt: "x"})
	assert.True(t, IsKind(err, KindAPIKey))
}

func TestErrorHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, (&Error{Kind: KindAPIKey}).HTTPStatus())
	assert.Equal(t, http.StatusTooManyRequests, (&Error{Kind: KindQuota}).HTTPStatus())
	assert.Equal(t, http.StatusServiceUnavailable, (&Error{Kind: KindModelUnavailable}).HTTPStatus())
	assert.Equal(t, http.StatusBadGateway, (&Error{Kind: KindUnknown}).HTTPStatus())

	e := newError(KindAPIKey, "gemini", "gemini-2.5-flash", "API key not valid", nil)
	assert.Equal(t, "https://aistudio.google.com/app/apikey", e.HelpURL)
	assert.Contains(t, e.Message, "API key not valid")
}

func TestClassifyPassesContextErrors(t *testing.T) {
	assert.ErrorIs(t, Classify("x", "m", context.Canceled), context.Canceled)
	assert.Nil(t, Classify("x", "m", nil))
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("here you go: {\"a\":1} enjoy"))
	assert.Equal(t, `["x","y"]`, extractJSON("```json\n[\"x\",\"y\"]\n```"))
	assert.Equal(t, "no json", extractJSON("no json"))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", truncateText("short", 10))
	assert.Equal(t, "ab...", truncateText("abcdef", 2))
	// "é" is two bytes; cutting inside it backs up to the rune start.
	assert.Equal(t, "a...", truncateText("aé", 2))
}
