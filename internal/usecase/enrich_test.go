package usecase

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alsrag/internal/adapter/embedding"
	"alsrag/internal/adapter/llm"
	"alsrag/internal/adapter/resilience"
	"alsrag/internal/port"
)

func TestEnrich(t *testing.T) {
	model := &llm.Mock{Reply: func(port.ChatRequest) (string, error) {
		return `{"title": "Riluzole", "summary": "First approved ALS drug."}`, nil
	}}
	e := testEnricher(model, embedding.NewMockEmbedder(testDimension))

	got := e.Enrich(context.Background(), "Riluzole extends survival.", "https://als.example/riluzole")

	assert.Equal(t, "Riluzole", got.Title)
	assert.Equal(t, "First approved ALS drug.", got.Summary)
	assert.Len(t, got.Embedding, testDimension)
	assert.False(t, IsZeroVector(got.Embedding))
}

func TestTitleAndSummaryRequest(t *testing.T) {
	model := &llm.Mock{}
	e := testEnricher(model, embedding.NewMockEmbedder(testDimension))

	text := strings.Repeat("a", 600)
	e.TitleAndSummary(context.Background(), text, "https://als.example/x")

	reqs := model.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.True(t, req.JSONObject)
	assert.Equal(t, 150, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "'title' and 'summary'")
	assert.Equal(t, "URL: https://als.example/x\nContent: "+strings.Repeat("a", 500), req.Messages[1].Content)
}

func TestTitleAndSummarySentinels(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "call fails", err: errors.New("connection refused")},
		{name: "malformed json", reply: "not json"},
		{name: "missing summary", reply: `{"title": "only a title"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &llm.Mock{Reply: func(port.ChatRequest) (string, error) {
				return tt.reply, tt.err
			}}
			e := testEnricher(model, embedding.NewMockEmbedder(testDimension))

			title, summary := e.TitleAndSummary(context.Background(), "text", "https://als.example/")
			assert.Equal(t, TitleFallback, title)
			assert.Equal(t, SummaryFallback, summary)
		})
	}
}

func TestTitleAndSummaryRetries(t *testing.T) {
	var calls atomic.Int32
	model := &llm.Mock{Reply: func(port.ChatRequest) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("503")
		}
		return `{"title": "T", "summary": "S"}`, nil
	}}
	guard := resilience.NewGuard(resilience.GuardConfig{
		Name:           "chat",
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}, nil, nil)

	opts := DefaultEnrichOptions()
	opts.Dimension = testDimension
	e := NewEnricher(model, embedding.NewMockEmbedder(testDimension), guard, nil, opts, nil, nil)

	title, summary := e.TitleAndSummary(context.Background(), "text", "u")
	assert.Equal(t, "T", title)
	assert.Equal(t, "S", summary)
	assert.EqualValues(t, 3, calls.Load())
}

func TestEmbedZeroVectorOnFailure(t *testing.T) {
	e := testEnricher(&llm.Mock{}, &failingEmbedder{dimension: testDimension, err: errors.New("timeout")})

	vec := e.Embed(context.Background(), "text")
	assert.Len(t, vec, testDimension)
	assert.True(t, IsZeroVector(vec))
}

func TestEmbedWrongDimensionIsFailure(t *testing.T) {
	e := testEnricher(&llm.Mock{}, &failingEmbedder{
		dimension: testDimension,
		vectors:   [][]float32{{1, 2, 3}},
	})

	vec := e.Embed(context.Background(), "text")
	assert.Len(t, vec, testDimension)
	assert.True(t, IsZeroVector(vec))
}

func TestPrefixIsRuneSafe(t *testing.T) {
	assert.Equal(t, "héé", prefix("hééllo", 3))
	assert.Equal(t, "short", prefix("short", 10))
	assert.Equal(t, "abc", prefix("abc", 0))
}
