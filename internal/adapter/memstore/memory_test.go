package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alsrag/internal/domain"
)

func TestMemoryStoreConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Insert(ctx, domain.Chunk{URL: "https://a", ChunkNumber: i, Embedding: []float32{1}})
		}(i)
	}
	wg.Wait()

	n, err := s.Count(ctx, domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	chunks, err := s.GetChunksByURL(ctx, "https://a", domain.Filter{})
	require.NoError(t, err)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkNumber)
		assert.NotEmpty(t, c.ID)
	}
}

func TestMemoryStoreQueries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	als := domain.ChunkMetadata{Source: "als_info"}

	require.NoError(t, s.Insert(ctx, domain.Chunk{URL: "https://b", Metadata: als, Embedding: []float32{1, 0}}))
	require.NoError(t, s.Insert(ctx, domain.Chunk{URL: "https://a", Metadata: als, Embedding: []float32{0, 1}}))
	require.NoError(t, s.Insert(ctx, domain.Chunk{URL: "https://c", Embedding: []float32{1, 0}}))

	urls, err := s.ListDistinctURLs(ctx, domain.Filter{Source: "als_info"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a", "https://b"}, urls)

	res, err := s.SimilaritySearch(ctx, []float32{1, 0}, 1, domain.Filter{Source: "als_info"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "https://b", res[0].Chunk.URL)

	n, err := s.DeleteByURL(ctx, "https://b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, s.All(), 2)
}

func TestMemoryStoreInsertHook(t *testing.T) {
	s := NewMemoryStore()
	s.InsertHook = func(c domain.Chunk) error {
		if c.ChunkNumber == 1 {
			return errors.New("rejected")
		}
		return nil
	}

	assert.NoError(t, s.Insert(context.Background(), domain.Chunk{ChunkNumber: 0}))
	assert.Error(t, s.Insert(context.Background(), domain.Chunk{ChunkNumber: 1}))
	assert.Len(t, s.All(), 1)
}
