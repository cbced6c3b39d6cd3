package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	embedding "github.com/matthewjhunter/go-embedding"
	"github.com/matthewjhunter/dossier/internal/storage"
)

// mockEmbedder returns predetermined embeddings for testing.
type mockEmbedder struct {
	vectors map[string][]float32
	model   string
	err     error
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	var results [][]float32
	for _, t := range texts {
		if v, ok := m.vectors[t]; ok {
			results = append(results, v)
		} else {
			results = append(results, []float32{0.1, 0.1, 0.1})
		}
	}
	return results, nil
}

func (m *mockEmbedder) Model() string { return m.model }

func sample(id int64, title string, vec []float32, model string, age time.Duration) storage.CoverLetterSample {
	s := storage.CoverLetterSample{
		ID:        id,
		Title:     title,
		Content:   title,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(-age),
	}
	if vec != nil {
		s.Embedding = embedding.EncodeFloat32s(vec)
		s.EmbeddingModel = model
	}
	return s
}

func TestRankSamples_BySimilarity(t *testing.T) {
	e := &mockEmbedder{model: "nomic", vectors: map[string][]float32{"go backend job": {1, 0, 0}}}
	samples := []storage.CoverLetterSample{
		sample(1, "marketing", []float32{0, 1, 0}, "nomic", 0),
		sample(2, "backend", []float32{0.9, 0.1, 0}, "nomic", time.Hour),
		sample(3, "no embedding", nil, "", 0),
		sample(4, "other model", []float32{1, 0, 0}, "other", 0),
		sample(5, "platform", []float32{0.7, 0.3, 0}, "nomic", 2*time.Hour),
	}

	got, err := RankSamples(context.Background(), e, "go backend job", samples, 3)
	if err != nil {
		t.Fatalf("RankSamples failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
	want := []int64{2, 5, 1}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("rank %d: got sample %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestRankSamples_NoEmbedderReturnsNewest(t *testing.T) {
	samples := []storage.CoverLetterSample{
		sample(1, "old", nil, "", 3*time.Hour),
		sample(2, "newest", nil, "", 0),
		sample(3, "middle", nil, "", time.Hour),
	}
	got, err := RankSamples(context.Background(), nil, "q", samples, 2)
	if err != nil {
		t.Fatalf("RankSamples failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestRankSamples_EmbedderFailure(t *testing.T) {
	e := &mockEmbedder{model: "nomic", err: errors.New("ollama down")}
	samples := []storage.CoverLetterSample{sample(1, "a", nil, "", 0)}
	got, err := RankSamples(context.Background(), e, "q", samples, 3)
	if err == nil {
		t.Error("expected embedder error to be reported")
	}
	if len(got) != 1 {
		t.Errorf("expected newest fallback, got %d", len(got))
	}
}

func TestEmbedSample(t *testing.T) {
	e := &mockEmbedder{model: "nomic", vectors: map[string][]float32{"letter": {0.5, 0.5}}}
	b, err := EmbedSample(context.Background(), e, "letter")
	if err != nil {
		t.Fatalf("EmbedSample failed: %v", err)
	}
	vec := embedding.DecodeFloat32s(b)
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("round trip = %v", vec)
	}
}
