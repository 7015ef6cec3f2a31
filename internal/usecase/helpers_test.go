package usecase

import (
	"context"
	"errors"
	"sync"

	"alsrag/internal/adapter/chunker"
	"alsrag/internal/adapter/embedding"
	"alsrag/internal/adapter/llm"
	"alsrag/internal/adapter/memstore"
	"alsrag/internal/domain"
	"alsrag/internal/port"
)

const testDimension = 64

func testEnricher(model port.LLM, embedder port.Embedder) *Enricher {
	opts := DefaultEnrichOptions()
	opts.Dimension = testDimension
	return NewEnricher(model, embedder, nil, nil, opts, nil, nil)
}

func testDeps(store port.DocumentStore, fetcher port.Fetcher) Deps {
	return Deps{
		Store:    store,
		Chunker:  chunker.NewTextChunker(100),
		Fetcher:  fetcher,
		Enricher: testEnricher(&llm.Mock{}, embedding.NewMockEmbedder(testDimension)),
	}
}

func newMemStore() *memstore.MemoryStore {
	return memstore.NewMemoryStore()
}

type failingEmbedder struct {
	dimension int
	err       error
	vectors   [][]float32
}

func (e *failingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vectors, nil
}

func (e *failingEmbedder) Dimension() int    { return e.dimension }
func (e *failingEmbedder) ModelName() string { return "failing" }

// stubStore returns canned results and records the filters it was given.
type stubStore struct {
	mu      sync.Mutex
	results []domain.ScoredChunk
	chunks  []domain.Chunk
	urls    []string
	err     error
	filters []domain.Filter
	queries [][]float32
}

func (s *stubStore) record(f domain.Filter) {
	s.mu.Lock()
	s.filters = append(s.filters, f)
	s.mu.Unlock()
}

func (s *stubStore) Insert(context.Context, domain.Chunk) error {
	return errors.New("stub store is read-only")
}

func (s *stubStore) SimilaritySearch(_ context.Context, embedding []float32, k int, filter domain.Filter) ([]domain.ScoredChunk, error) {
	s.record(filter)
	s.mu.Lock()
	s.queries = append(s.queries, embedding)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.results) {
		return s.results[:k], nil
	}
	return s.results, nil
}

func (s *stubStore) ListDistinctURLs(_ context.Context, filter domain.Filter) ([]string, error) {
	s.record(filter)
	return s.urls, s.err
}

func (s *stubStore) GetChunksByURL(_ context.Context, _ string, filter domain.Filter) ([]domain.Chunk, error) {
	s.record(filter)
	return s.chunks, s.err
}

type fetcherFunc func(ctx context.Context, url string) (string, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}
