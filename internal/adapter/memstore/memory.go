package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"alsrag/internal/adapter/vector"
	"alsrag/internal/domain"
)

// MemoryStore is a mutex-guarded DocumentStore for tests and dry runs.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []domain.Chunk
	// InsertHook, when set, runs before each insert and may fail it.
	InsertHook func(domain.Chunk) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, chunk domain.Chunk) error {
	if s.InsertHook != nil {
		if err := s.InsertHook(chunk); err != nil {
			return err
		}
	}
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunk)
	return nil
}

func (s *MemoryStore) SimilaritySearch(_ context.Context, embedding []float32, k int, filter domain.Filter) ([]domain.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return vector.TopK(embedding, s.chunks, k, filter), nil
}

func (s *MemoryStore) ListDistinctURLs(_ context.Context, filter domain.Filter) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var urls []string
	for _, c := range s.chunks {
		if filter.Matches(c) && !seen[c.URL] {
			seen[c.URL] = true
			urls = append(urls, c.URL)
		}
	}
	sort.Strings(urls)
	return urls, nil
}

func (s *MemoryStore) GetChunksByURL(_ context.Context, url string, filter domain.Filter) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Chunk
	for _, c := range s.chunks {
		if c.URL == url && filter.Matches(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ChunkNumber < out[j].ChunkNumber
	})
	return out, nil
}

func (s *MemoryStore) DeleteByURL(_ context.Context, url string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.URL != url {
			kept = append(kept, c)
		}
	}
	n := len(s.chunks) - len(kept)
	s.chunks = kept
	return n, nil
}

func (s *MemoryStore) Count(_ context.Context, filter domain.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, c := range s.chunks {
		if filter.Matches(c) {
			n++
		}
	}
	return n, nil
}

// All returns a copy of every stored chunk in insertion order.
func (s *MemoryStore) All() []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Chunk(nil), s.chunks...)
}

func (s *MemoryStore) Close() error {
	return nil
}
