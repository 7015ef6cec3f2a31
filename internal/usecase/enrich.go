package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"alsrag/internal/adapter/metrics"
	"alsrag/internal/adapter/resilience"
	"alsrag/internal/adapter/vector"
	"alsrag/internal/domain"
	"alsrag/internal/port"
)

// Sentinels substituted when title/summary extraction fails.
const (
	TitleFallback   = "Error processing title"
	SummaryFallback = "Error processing summary"
)

const titleSystemPrompt = `Extract concise title and summary from chunks. Return JSON with 'title' and 'summary' keys.
Title: Extract document title or create descriptive heading if mid-document.
Summary: Briefly capture main points in 1-2 sentences.`

// EnrichOptions bounds what the enricher sends to the model APIs.
type EnrichOptions struct {
	TitlePrefixChars int
	EmbedPrefixChars int
	MaxTokens        int
	Dimension        int
}

func DefaultEnrichOptions() EnrichOptions {
	return EnrichOptions{
		TitlePrefixChars: 500,
		EmbedPrefixChars: 8000,
		MaxTokens:        150,
		Dimension:        1536,
	}
}

// Enricher derives a title, summary and embedding for each chunk. It never
// fails: errors are logged and replaced with sentinel values.
type Enricher struct {
	llm        port.LLM
	embedder   port.Embedder
	chatGuard  *resilience.Guard
	embedGuard *resilience.Guard
	opts       EnrichOptions
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewEnricher creates an enricher. Nil guards call the APIs directly.
func NewEnricher(
	llm port.LLM,
	embedder port.Embedder,
	chatGuard, embedGuard *resilience.Guard,
	opts EnrichOptions,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if chatGuard == nil {
		chatGuard = resilience.NewGuard(resilience.GuardConfig{Name: "chat"}, m, logger)
	}
	if embedGuard == nil {
		embedGuard = resilience.NewGuard(resilience.GuardConfig{Name: "embedding"}, m, logger)
	}
	return &Enricher{
		llm:        llm,
		embedder:   embedder,
		chatGuard:  chatGuard,
		embedGuard: embedGuard,
		opts:       opts,
		logger:     logger,
		metrics:    m,
	}
}

// Enrich derives everything stored alongside a chunk.
func (e *Enricher) Enrich(ctx context.Context, chunkText, url string) domain.Enrichment {
	title, summary := e.TitleAndSummary(ctx, chunkText, url)
	return domain.Enrichment{
		Title:     title,
		Summary:   summary,
		Embedding: e.Embed(ctx, chunkText),
	}
}

type titleSummary struct {
	Title   *string `json:"title"`
	Summary *string `json:"summary"`
}

// TitleAndSummary asks the chat model for a title and summary of the chunk's
// opening characters.
func (e *Enricher) TitleAndSummary(ctx context.Context, chunkText, url string) (string, string) {
	req := port.ChatRequest{
		Messages: []port.ChatMessage{
			{Role: string(domain.RoleSystem), Content: titleSystemPrompt},
			{Role: string(domain.RoleUser), Content: fmt.Sprintf("URL: %s\nContent: %s", url, prefix(chunkText, e.opts.TitlePrefixChars))},
		},
		MaxTokens:  e.opts.MaxTokens,
		JSONObject: true,
	}

	start := time.Now()
	out, err := resilience.Call(ctx, e.chatGuard, func(ctx context.Context) (titleSummary, error) {
		raw, err := e.llm.Complete(ctx, req)
		if err != nil {
			return titleSummary{}, err
		}
		var ts titleSummary
		if err := json.Unmarshal([]byte(raw), &ts); err != nil {
			return titleSummary{}, fmt.Errorf("malformed title/summary response: %w", err)
		}
		if ts.Title == nil || ts.Summary == nil {
			return titleSummary{}, fmt.Errorf("title/summary response is missing fields")
		}
		return ts, nil
	})
	e.metrics.APICall("chat", time.Since(start), err)

	if err != nil {
		e.logger.Warn("error getting title and summary", zap.String("url", url), zap.Error(err))
		e.metrics.Fallback("title")
		return TitleFallback, SummaryFallback
	}
	return *out.Title, *out.Summary
}

// Embed returns the embedding of text's prefix, or a zero vector of the
// configured dimension when the call fails or returns the wrong dimension.
func (e *Enricher) Embed(ctx context.Context, text string) []float32 {
	input := prefix(text, e.opts.EmbedPrefixChars)

	start := time.Now()
	vec, err := resilience.Call(ctx, e.embedGuard, func(ctx context.Context) ([]float32, error) {
		vecs, err := e.embedder.Embed(ctx, []string{input})
		if err != nil {
			return nil, err
		}
		if len(vecs) != 1 {
			return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
		}
		if len(vecs[0]) != e.opts.Dimension {
			return nil, resilience.Permanent(fmt.Errorf("embedding dimension %d, expected %d", len(vecs[0]), e.opts.Dimension))
		}
		return vecs[0], nil
	})
	e.metrics.APICall("embedding", time.Since(start), err)

	if err != nil {
		e.logger.Warn("error getting embedding", zap.Error(err))
		e.metrics.Fallback("embedding")
		return make([]float32, e.opts.Dimension)
	}
	return vec
}

// prefix returns at most n characters (runes) of s.
func prefix(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// IsZeroVector reports whether v is the embedding failure sentinel.
func IsZeroVector(v []float32) bool {
	return vector.IsZero(v)
}
