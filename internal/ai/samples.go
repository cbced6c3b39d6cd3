package ai

import (
	"context"
	"sort"

	embedding "github.com/matthewjhunter/go-embedding"
	"github.com/matthewjhunter/dossier/internal/storage"
)

// EmbedSample returns the encoded embedding for a sample's content.
func EmbedSample(ctx context.Context, e embedding.Embedder, content string) ([]byte, error) {
	vec, err := embedding.Single(ctx, e, truncateText(content, 8000))
	if err != nil {
		return nil, err
	}
	return embedding.EncodeFloat32s(vec), nil
}

// RankSamples returns up to k samples most similar to query. Samples without
// an embedding from the embedder's model rank after those with one. With no
// embedder, or if embedding the query fails, the newest k are returned.
func RankSamples(ctx context.Context, e embedding.Embedder, query string, samples []storage.CoverLetterSample, k int) ([]storage.CoverLetterSample, error) {
	if k <= 0 || len(samples) == 0 {
		return nil, nil
	}
	newest := func() []storage.CoverLetterSample {
		out := make([]storage.CoverLetterSample, len(samples))
		copy(out, samples)
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		return out[:min(k, len(out))]
	}
	if e == nil {
		return newest(), nil
	}
	qvec, err := embedding.Single(ctx, e, truncateText(query, 8000))
	if err != nil {
		return newest(), err
	}

	type scored struct {
		sample storage.CoverLetterSample
		score  float64
		ok     bool
	}
	ranked := make([]scored, 0, len(samples))
	for _, s := range samples {
		sc := scored{sample: s}
		if len(s.Embedding) > 0 && s.EmbeddingModel == e.Model() {
			vec := embedding.DecodeFloat32s(s.Embedding)
			if len(vec) == len(qvec) {
				sc.score = float64(embedding.CosineSimilarity(qvec, vec))
				sc.ok = true
			}
		}
		ranked = append(ranked, sc)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].ok != ranked[j].ok {
			return ranked[i].ok
		}
		return ranked[i].score > ranked[j].score
	})

	out := make([]storage.CoverLetterSample, 0, k)
	for _, r := range ranked[:min(k, len(ranked))] {
		out = append(out, r.sample)
	}
	return out, nil
}
