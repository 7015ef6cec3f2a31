package usecase

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"alsrag/internal/domain"
)

// ProgressFunc is called after each document completes. It may be called from
// several goroutines at once.
type ProgressFunc func(processed, total int, url string)

// IngestOptions tunes the ingestion pipeline.
type IngestOptions struct {
	// ChunkConcurrency bounds enrichment calls within one document.
	ChunkConcurrency int
	// ReplaceExisting deletes a URL's stored chunks before inserting new ones.
	ReplaceExisting bool
	Source          string
	Progress        ProgressFunc
}

// IngestUseCase turns page text into enriched, stored chunks.
type IngestUseCase struct {
	deps Deps
	opts IngestOptions
	now  func() time.Time
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(deps Deps, opts IngestOptions) *IngestUseCase {
	if opts.ChunkConcurrency <= 0 {
		opts.ChunkConcurrency = 8
	}
	if opts.Source == "" {
		opts.Source = domain.SourceALSInfo
	}
	return &IngestUseCase{
		deps: deps,
		opts: opts,
		now:  time.Now,
	}
}

// IngestResult describes one processed document.
type IngestResult struct {
	URL            string
	Chunks         int
	Inserted       int
	InsertFailures int
	Replaced       int
}

// Report summarises an IngestAll run.
type Report struct {
	Total          int
	Processed      int
	FetchFailures  int
	Skipped        int
	Chunks         int
	Inserted       int
	InsertFailures int
	Duration       time.Duration
	Errors         []string
}

// Ingest chunks raw, enriches every chunk concurrently and inserts them. Insert
// failures are logged and counted; they never abort sibling chunks.
func (u *IngestUseCase) Ingest(ctx context.Context, pageURL, raw string) IngestResult {
	logger := u.deps.logger().With(zap.String("url", pageURL))
	result := IngestResult{URL: pageURL}

	chunks := u.deps.Chunker.Chunk(raw)
	result.Chunks = len(chunks)
	if len(chunks) == 0 {
		logger.Debug("no chunks produced")
		return result
	}

	if u.opts.ReplaceExisting {
		if admin, ok := u.deps.admin(); ok {
			n, err := admin.DeleteByURL(ctx, pageURL)
			if err != nil {
				logger.Warn("failed to delete existing chunks", zap.Error(err))
			}
			result.Replaced = n
		}
	}

	crawledAt := u.now().UTC()
	urlPath := ""
	if parsed, err := url.Parse(pageURL); err == nil {
		urlPath = parsed.Path
	}

	enriched := make([]domain.Chunk, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.ChunkConcurrency)
	for i, text := range chunks {
		g.Go(func() error {
			e := u.deps.Enricher.Enrich(gctx, text, pageURL)
			enriched[i] = domain.Chunk{
				URL:         pageURL,
				ChunkNumber: i,
				Title:       e.Title,
				Summary:     e.Summary,
				Content:     text,
				Metadata: domain.ChunkMetadata{
					Source:    u.opts.Source,
					ChunkSize: len(text),
					CrawledAt: crawledAt,
					URLPath:   urlPath,
				},
				Embedding: e.Embedding,
			}
			return nil
		})
	}
	_ = g.Wait()

	var inserted, failed atomic.Int64
	var wg sync.WaitGroup
	for _, chunk := range enriched {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// inserts use the caller's ctx so one failure cannot cancel siblings
			if err := u.deps.Store.Insert(ctx, chunk); err != nil {
				logger.Error("error inserting chunk",
					zap.Int("chunk_number", chunk.ChunkNumber),
					zap.Error(err))
				failed.Add(1)
				u.deps.Metrics.ChunkInserted(false)
				return
			}
			logger.Debug("inserted chunk", zap.Int("chunk_number", chunk.ChunkNumber))
			inserted.Add(1)
			u.deps.Metrics.ChunkInserted(true)
		}()
	}
	wg.Wait()

	result.Inserted = int(inserted.Load())
	result.InsertFailures = int(failed.Load())
	return result
}

// IngestAll fetches and ingests urls with at most limit documents in flight.
// Documents not yet admitted when ctx ends are skipped; admitted ones finish.
func (u *IngestUseCase) IngestAll(ctx context.Context, urls []string, limit int) *Report {
	if limit <= 0 {
		limit = 3
	}
	logger := u.deps.logger()
	start := time.Now()
	report := &Report{Total: len(urls)}

	sem := semaphore.NewWeighted(int64(limit))
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		processed int
		skipped   int
	)

	for _, pageURL := range urls {
		if ctx.Err() != nil {
			skipped++
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			skipped++
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			u.deps.Metrics.DocumentStarted()
			defer u.deps.Metrics.DocumentFinished()

			// an admitted document runs to completion even if ctx ends meanwhile
			docCtx := context.WithoutCancel(ctx)

			raw, err := u.deps.Fetcher.Fetch(docCtx, pageURL)
			if err != nil {
				logger.Warn("failed to fetch page", zap.String("url", pageURL), zap.Error(err))
				u.deps.Metrics.DocumentDone("fetch_failed")
				mu.Lock()
				report.FetchFailures++
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", pageURL, err))
				processed++
				n := processed
				mu.Unlock()
				u.progress(n, len(urls), pageURL)
				return
			}

			res := u.Ingest(docCtx, pageURL, raw)
			if res.InsertFailures > 0 {
				u.deps.Metrics.DocumentDone("partial")
			} else {
				u.deps.Metrics.DocumentDone("ok")
			}
			logger.Info("processed page",
				zap.String("url", pageURL),
				zap.Int("chunks", res.Chunks),
				zap.Int("inserted", res.Inserted))

			mu.Lock()
			report.Processed++
			report.Chunks += res.Chunks
			report.Inserted += res.Inserted
			report.InsertFailures += res.InsertFailures
			processed++
			n := processed
			mu.Unlock()
			u.progress(n, len(urls), pageURL)
		}()
	}

	wg.Wait()
	report.Skipped = skipped
	report.Duration = time.Since(start)
	return report
}

func (u *IngestUseCase) progress(processed, total int, pageURL string) {
	if u.opts.Progress != nil {
		u.opts.Progress(processed, total, pageURL)
	}
}
