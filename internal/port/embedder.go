package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// EmbeddingCache stores query and chunk embeddings keyed by model and text.
type EmbeddingCache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool)
	Put(ctx context.Context, model, text string, vector []float32)
}
