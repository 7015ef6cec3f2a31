package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alsrag/internal/adapter/llm"
	"alsrag/internal/domain"
	"alsrag/internal/port"
)

func newResponder(t *testing.T, model port.LLM) *RespondUseCase {
	t.Helper()
	store := &stubStore{results: []domain.ScoredChunk{
		{Chunk: domain.Chunk{Title: "Edaravone", Content: "Approved in 2017.", URL: "https://als.example/e"}, Similarity: 0.8},
	}}
	retriever := NewRetrieveUseCase(testDeps(store, nil), 5, "")
	return NewRespondUseCase(retriever, model, nil, RespondOptions{}, nil)
}

func TestRespondTrimsToMaxChars(t *testing.T) {
	model := &llm.Mock{Reply: func(port.ChatRequest) (string, error) {
		return strings.Repeat("ALS ", 50) + strings.Repeat("é", 100), nil
	}}
	u := newResponder(t, model)

	reply, err := u.Respond(context.Background(), nil, "Which drugs are approved?")
	require.NoError(t, err)
	assert.Equal(t, 230, utf8.RuneCountInString(reply))
	assert.True(t, utf8.ValidString(reply))
}

func TestRespondPrompt(t *testing.T) {
	model := &llm.Mock{Reply: func(port.ChatRequest) (string, error) {
		return "Edaravone (2017) slows decline.", nil
	}}
	u := newResponder(t, model)

	reply, err := u.Respond(context.Background(), nil, "Which drugs are approved?")
	require.NoError(t, err)
	assert.Equal(t, "Edaravone (2017) slows decline.", reply)

	reqs := model.Requests()
	require.Len(t, reqs, 1)
	msgs := reqs[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "ALSCareAI")
	assert.Contains(t, msgs[0].Content, "230 characters")
	assert.Equal(t, "user", msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "Approved in 2017.")
	assert.True(t, strings.HasSuffix(msgs[1].Content, "Question: Which drugs are approved?"))
	assert.False(t, reqs[0].JSONObject)
}

func TestRespondCapsHistory(t *testing.T) {
	model := &llm.Mock{Reply: func(port.ChatRequest) (string, error) { return "ok", nil }}
	u := newResponder(t, model)

	var history []domain.ConversationTurn
	for i := 0; i < 12; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		history = append(history, domain.ConversationTurn{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}

	_, err := u.Respond(context.Background(), history, "next")
	require.NoError(t, err)

	msgs := model.Requests()[0].Messages
	require.Len(t, msgs, 12)
	assert.Equal(t, "turn 2", msgs[1].Content)
	assert.Equal(t, "turn 11", msgs[10].Content)
}

func TestRespondReturnsLLMError(t *testing.T) {
	model := &llm.Mock{Reply: func(port.ChatRequest) (string, error) {
		return "", errors.New("rate limited")
	}}
	u := newResponder(t, model)

	_, err := u.Respond(context.Background(), nil, "hi")
	assert.ErrorContains(t, err, "rate limited")
}
