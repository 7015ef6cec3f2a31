package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"alsrag/internal/domain"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 1}))
}

func TestTopK(t *testing.T) {
	chunks := []domain.Chunk{
		{URL: "a", Embedding: []float32{0, 1}, Metadata: domain.ChunkMetadata{Source: "als_info"}},
		{URL: "b", Embedding: []float32{1, 0}, Metadata: domain.ChunkMetadata{Source: "als_info"}},
		{URL: "c", Embedding: []float32{1, 0}, Metadata: domain.ChunkMetadata{Source: "other"}},
		{URL: "d", Embedding: []float32{1, 1}, Metadata: domain.ChunkMetadata{Source: "als_info"}},
	}

	got := TopK([]float32{1, 0}, chunks, 2, domain.Filter{Source: "als_info"})
	if assert.Len(t, got, 2) {
		assert.Equal(t, "b", got[0].Chunk.URL)
		assert.Equal(t, "d", got[1].Chunk.URL)
		assert.Greater(t, got[0].Similarity, got[1].Similarity)
	}

	all := TopK([]float32{1, 0}, chunks, 10, domain.Filter{})
	assert.Len(t, all, 4)
	// equal scores keep input order
	assert.Equal(t, "b", all[0].Chunk.URL)
	assert.Equal(t, "c", all[1].Chunk.URL)

	assert.Empty(t, TopK([]float32{1, 0}, chunks, 0, domain.Filter{}))
}

func TestTopKZeroEmbeddingRanksLast(t *testing.T) {
	chunks := []domain.Chunk{
		{URL: "zero", Embedding: []float32{0, 0}},
		{URL: "opposite", Embedding: []float32{-1, 0.1}},
		{URL: "close", Embedding: []float32{1, 0.2}},
	}

	got := TopK([]float32{1, 0}, chunks, 3, domain.Filter{})
	if assert.Len(t, got, 3) {
		assert.Equal(t, "close", got[0].Chunk.URL)
		assert.Equal(t, "opposite", got[1].Chunk.URL)
		assert.Less(t, got[1].Similarity, 0.0)
		assert.Equal(t, "zero", got[2].Chunk.URL)
		assert.Zero(t, got[2].Similarity)
	}

	top := TopK([]float32{1, 0}, chunks[:2], 1, domain.Filter{})
	if assert.Len(t, top, 1) {
		assert.Equal(t, "opposite", top[0].Chunk.URL)
	}
}

func TestIsZero(t *testing.T) {
	assert.True(t, IsZero([]float32{0, 0, 0}))
	assert.True(t, IsZero(nil))
	assert.False(t, IsZero([]float32{0, 0.5}))
}
