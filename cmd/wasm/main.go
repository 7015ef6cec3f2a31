//go:build js && wasm

// Command wasm runs the ingestion and retrieval path in the browser against an
// in-memory store. Titles and embeddings come from the offline mock models, so
// no API key is needed.
package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"alsrag/internal/adapter/chunker"
	"alsrag/internal/adapter/embedding"
	"alsrag/internal/adapter/llm"
	"alsrag/internal/adapter/memstore"
	"alsrag/internal/domain"
	"alsrag/internal/usecase"
)

const dimension = 256

var (
	store     *memstore.MemoryStore
	ingester  *usecase.IngestUseCase
	retriever *usecase.RetrieveUseCase
)

func init() {
	reset()
}

func reset() {
	store = memstore.NewMemoryStore()

	opts := usecase.DefaultEnrichOptions()
	opts.Dimension = dimension
	enricher := usecase.NewEnricher(&llm.Mock{}, embedding.NewMockEmbedder(dimension), nil, nil, opts, nil, nil)

	deps := usecase.Deps{
		Store:    store,
		Chunker:  chunker.NewTextChunker(1000),
		Enricher: enricher,
	}
	ingester = usecase.NewIngestUseCase(deps, usecase.IngestOptions{})
	retriever = usecase.NewRetrieveUseCase(deps, 5, domain.SourceALSInfo)
}

func main() {
	c := make(chan struct{})

	js.Global().Set("ragIngest", js.FuncOf(ingestContent))
	js.Global().Set("ragQuery", js.FuncOf(queryContent))
	js.Global().Set("ragPage", js.FuncOf(pageContent))
	js.Global().Set("ragClear", js.FuncOf(clearStore))
	js.Global().Set("ragStats", js.FuncOf(getStats))

	<-c
}

func ingestContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: ragIngest(url, content)")
	}

	url := args[0].String()
	content := args[1].String()

	res := ingester.Ingest(context.Background(), url, content)
	if res.InsertFailures > 0 {
		return makeError("some chunks could not be stored")
	}

	return makeResult(map[string]interface{}{
		"success": true,
		"chunks":  res.Chunks,
		"url":     url,
	})
}

func queryContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: ragQuery(query, [topK])")
	}

	query := args[0].String()
	topK := 5
	if len(args) > 1 {
		topK = args[1].Int()
	}

	results, err := retriever.Search(context.Background(), query, topK)
	if err != nil {
		return makeError("search failed: " + err.Error())
	}

	output := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		output = append(output, map[string]interface{}{
			"url":         r.Chunk.URL,
			"chunkNumber": r.Chunk.ChunkNumber,
			"similarity":  r.Similarity,
			"text":        r.Chunk.Content,
		})
	}

	return makeResult(map[string]interface{}{
		"results":   output,
		"formatted": retriever.Retrieve(context.Background(), query, topK),
		"query":     query,
	})
}

func pageContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: ragPage(url)")
	}
	return makeResult(map[string]interface{}{
		"content": retriever.PageContent(context.Background(), args[0].String()),
	})
}

func clearStore(this js.Value, args []js.Value) interface{} {
	reset()
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func getStats(this js.Value, args []js.Value) interface{} {
	ctx := context.Background()
	total, _ := store.Count(ctx, domain.Filter{})

	return makeResult(map[string]interface{}{
		"totalChunks": total,
		"pages":       retriever.ListPages(ctx),
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
