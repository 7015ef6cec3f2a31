package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"alsrag/config"
	"alsrag/internal/adapter/embedding"
	"alsrag/internal/adapter/store"
	"alsrag/internal/domain"
	"alsrag/internal/port"
	"alsrag/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding .alsrag/store.db")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir . -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Store contents (chunks, pages, embedding model)")
		fmt.Println("  2. Semantic similarity of the top results")
		fmt.Println("  3. Chunks stored with a failed enrichment")
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewBoltStore(config.StoreDBPath(*dir), cfg.Embedding.Dimension)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	embedder, err := setupEmbedding(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Semantic search not available: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	filter := domain.Filter{Source: cfg.Retrieve.Source}

	count, _ := st.Count(ctx, filter)
	if count == 0 {
		fmt.Fprintln(os.Stderr, "Store is empty - run 'alsrag crawl' first")
		os.Exit(1)
	}
	urls, _ := st.ListDistinctURLs(ctx, filter)

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks stored: %d across %d pages\n", count, len(urls))
	fmt.Printf("Model: %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", embedder.Dimension())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	queryVec, err := embedder.Embed(ctx, []string{*query})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Query embedded: %d dimensions\n\n", len(queryVec[0]))

	results, err := st.SimilaritySearch(ctx, queryVec[0], *topK, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(results))

	totalScore := 0.0
	fallbacks := 0
	zeroVectors := 0
	for i, r := range results {
		preview := r.Chunk.Content
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}
		preview = strings.ReplaceAll(preview, "\n", " ")

		similarity := r.Similarity
		totalScore += similarity
		if r.Chunk.Title == usecase.TitleFallback {
			fallbacks++
		}
		if usecase.IsZeroVector(r.Chunk.Embedding) {
			zeroVectors++
		}

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s #%d\n", i+1, rating, similarity, shortURL(r.Chunk.URL), r.Chunk.ChunkNumber)
		fmt.Printf("   %s\n   %s\n\n", r.Chunk.Title, preview)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Similarity)
	fmt.Printf("  Fallback titles:    %d/%d\n", fallbacks, len(results))
	fmt.Printf("  Failed embeddings:  %d/%d\n", zeroVectors, len(results))

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need better embeddings or a re-crawl")
	}
}

func shortURL(u string) string {
	u = strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://")
	if i := strings.Index(u, "/"); i >= 0 && i < len(u)-1 {
		return u[i:]
	}
	return u
}

func setupEmbedding(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		e, err := embedding.NewOpenAIEmbedder(cfg.APIKey(), cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimension, cfg.Embedding.Timeout)
		if err != nil {
			return nil, fmt.Errorf("embedder init failed: %w", err)
		}
		return e, nil
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Embedding.Provider)
	}
}
