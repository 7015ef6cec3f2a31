package cache

import (
	"context"

	"alsrag/internal/adapter/metrics"
	"alsrag/internal/port"
)

// CachedEmbedder consults a cache before calling the wrapped embedder.
type CachedEmbedder struct {
	embedder port.Embedder
	cache    port.EmbeddingCache
	metrics  *metrics.Metrics
}

func NewCachedEmbedder(embedder port.Embedder, cache port.EmbeddingCache, m *metrics.Metrics) *CachedEmbedder {
	return &CachedEmbedder{embedder: embedder, cache: cache, metrics: m}
}

// Embed returns cached vectors where possible and embeds the rest in one call.
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	model := e.embedder.ModelName()
	out := make([][]float32, len(texts))

	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := e.cache.Get(ctx, model, text); ok {
			e.metrics.CacheLookup(true)
			out[i] = vec
			continue
		}
		e.metrics.CacheLookup(false)
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := e.embedder.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		if j >= len(vecs) {
			break
		}
		out[i] = vecs[j]
		e.cache.Put(ctx, model, missTexts[j], vecs[j])
	}
	return out, nil
}

func (e *CachedEmbedder) Dimension() int {
	return e.embedder.Dimension()
}

func (e *CachedEmbedder) ModelName() string {
	return e.embedder.ModelName()
}
