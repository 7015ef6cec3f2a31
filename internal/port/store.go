package port

import (
	"context"

	"alsrag/internal/domain"
)

// DocumentStore is the persistence surface the ingestion and retrieval paths need.
// Implementations must tolerate concurrent Insert calls.
type DocumentStore interface {
	// Insert appends one chunk record. Duplicates are permitted.
	Insert(ctx context.Context, chunk domain.Chunk) error

	// SimilaritySearch returns up to k chunks most similar to embedding, most similar first.
	SimilaritySearch(ctx context.Context, embedding []float32, k int, filter domain.Filter) ([]domain.ScoredChunk, error)

	// ListDistinctURLs returns every URL with at least one stored chunk, sorted.
	ListDistinctURLs(ctx context.Context, filter domain.Filter) ([]string, error)

	// GetChunksByURL returns a URL's chunks ordered by chunk number ascending.
	GetChunksByURL(ctx context.Context, url string, filter domain.Filter) ([]domain.Chunk, error)
}

// StoreAdmin is implemented by stores that support maintenance operations.
type StoreAdmin interface {
	DeleteByURL(ctx context.Context, url string) (int, error)
	Count(ctx context.Context, filter domain.Filter) (int, error)
	Close() error
}
