package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"alsrag/internal/domain"
)

// NoResultsMessage is returned when a search matches nothing.
const NoResultsMessage = "No relevant information found in the database. I'll answer based on my general knowledge about ALS."

const resultSeparator = "\n\n---\n\n"

// RetrieveUseCase implements the agent's read-only documentation tools.
type RetrieveUseCase struct {
	deps   Deps
	topK   int
	filter domain.Filter
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(deps Deps, topK int, source string) *RetrieveUseCase {
	if topK <= 0 {
		topK = 5
	}
	if source == "" {
		source = domain.SourceALSInfo
	}
	return &RetrieveUseCase{
		deps:   deps,
		topK:   topK,
		filter: domain.Filter{Source: source},
	}
}

// TopK returns the default number of results for Retrieve.
func (u *RetrieveUseCase) TopK() int {
	return u.topK
}

// Search embeds query and returns the k most similar chunks.
func (u *RetrieveUseCase) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		k = u.topK
	}
	embedding := u.deps.Enricher.Embed(ctx, query)
	return u.deps.Store.SimilaritySearch(ctx, embedding, k, u.filter)
}

// Retrieve renders the k chunks most relevant to query as one text block. It
// never fails: errors come back as text for the caller to pass along.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, k int) string {
	results, err := u.Search(ctx, query, k)
	if err != nil {
		u.deps.logger().Error("error retrieving documentation", zap.String("query", query), zap.Error(err))
		u.deps.Metrics.Retrieval("error")
		return fmt.Sprintf("Error retrieving information: %v", err)
	}
	if len(results) == 0 {
		u.deps.Metrics.Retrieval("empty")
		return NoResultsMessage
	}

	u.deps.Metrics.Retrieval("ok")
	return FormatResults(results)
}

// FormatResults renders scored chunks in the order given.
func FormatResults(results []domain.ScoredChunk) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("\n# %s (Similarity: %.4f)\n\n%s\n\nSource: %s\n",
			r.Chunk.Title, r.Similarity, r.Chunk.Content, r.Chunk.URL)
	}
	return strings.Join(blocks, resultSeparator)
}

// ListPages returns every stored documentation URL, sorted.
func (u *RetrieveUseCase) ListPages(ctx context.Context) []string {
	urls, err := u.deps.Store.ListDistinctURLs(ctx, u.filter)
	if err != nil {
		u.deps.logger().Error("error retrieving documentation pages", zap.Error(err))
		return []string{}
	}
	if urls == nil {
		return []string{}
	}
	return urls
}

// PageContent reassembles a page from its chunks.
func (u *RetrieveUseCase) PageContent(ctx context.Context, pageURL string) string {
	chunks, err := u.deps.Store.GetChunksByURL(ctx, pageURL, u.filter)
	if err != nil {
		u.deps.logger().Error("error retrieving page content", zap.String("url", pageURL), zap.Error(err))
		return fmt.Sprintf("Error retrieving page content: %v", err)
	}
	if len(chunks) == 0 {
		return fmt.Sprintf("No content found for URL: %s", pageURL)
	}

	parts := make([]string, 0, len(chunks)+1)
	parts = append(parts, fmt.Sprintf("# %s\n", pageTitle(chunks[0].Title)))
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n\n")
}

func pageTitle(title string) string {
	if i := strings.Index(title, " - "); i >= 0 {
		return title[:i]
	}
	return title
}

// Status reports what the store holds: a chunk count, a few titles and the
// results of a test search for "ALS".
func (u *RetrieveUseCase) Status(ctx context.Context) (domain.StoreStatus, error) {
	var status domain.StoreStatus

	if admin, ok := u.deps.admin(); ok {
		n, err := admin.Count(ctx, u.filter)
		if err != nil {
			return status, fmt.Errorf("failed to count chunks: %w", err)
		}
		status.TotalChunks = n
	}

	urls, err := u.deps.Store.ListDistinctURLs(ctx, u.filter)
	if err != nil {
		return status, fmt.Errorf("failed to list pages: %w", err)
	}
	for _, pageURL := range urls {
		if len(status.SampleTitles) == 5 {
			break
		}
		chunks, err := u.deps.Store.GetChunksByURL(ctx, pageURL, u.filter)
		if err != nil {
			return status, fmt.Errorf("failed to load %s: %w", pageURL, err)
		}
		if len(chunks) > 0 {
			status.SampleTitles = append(status.SampleTitles, chunks[0].Title)
		}
	}

	results, err := u.Search(ctx, "ALS", 3)
	if err != nil {
		return status, fmt.Errorf("test search failed: %w", err)
	}
	status.TestResults = results
	return status, nil
}
