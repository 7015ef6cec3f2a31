package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alsrag/internal/domain"
	"alsrag/internal/port"
)

type queueSource struct {
	mu      sync.Mutex
	pending []port.Message
	acked   map[string]string
}

func (s *queueSource) Next(context.Context) (port.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return port.Message{}, false, nil
	}
	return s.pending[0], true, nil
}

func (s *queueSource) Ack(_ context.Context, msg port.Message, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acked == nil {
		s.acked = map[string]string{}
	}
	s.acked[msg.ID] = reply
	s.pending = s.pending[1:]
	return nil
}

type memorySink struct {
	mu     sync.Mutex
	writes [][]domain.ConversationTurn
}

func (s *memorySink) Write(_ context.Context, turns []domain.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, turns)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

type responderFunc func(ctx context.Context, history []domain.ConversationTurn, input string) (string, error)

func (f responderFunc) Respond(ctx context.Context, history []domain.ConversationTurn, input string) (string, error) {
	return f(ctx, history, input)
}

func echoResponder() responderFunc {
	return func(_ context.Context, _ []domain.ConversationTurn, input string) (string, error) {
		return "re: " + input, nil
	}
}

func TestPollStepSingleExchange(t *testing.T) {
	source := &queueSource{pending: []port.Message{{ID: "1", Text: "What is ALS?"}}}
	sink := &memorySink{}
	loop := NewPollLoop(source, sink, echoResponder(), PollOptions{}, nil)

	require.True(t, loop.Step(context.Background()))
	assert.False(t, loop.Step(context.Background()))

	require.Equal(t, 1, sink.count())
	turns := sink.writes[0]
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleUser, turns[0].Role)
	assert.Equal(t, "What is ALS?", turns[0].Content)
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)
	assert.Equal(t, "re: What is ALS?", turns[1].Content)
	assert.NotEmpty(t, turns[0].Timestamp)

	assert.Equal(t, "re: What is ALS?", source.acked["1"])
	assert.Len(t, loop.History(), 2)
}

func TestPollStepPassesHistory(t *testing.T) {
	source := &queueSource{pending: []port.Message{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}}}
	var seen []int
	responder := responderFunc(func(_ context.Context, history []domain.ConversationTurn, input string) (string, error) {
		seen = append(seen, len(history))
		return input, nil
	})
	loop := NewPollLoop(source, &memorySink{}, responder, PollOptions{}, nil)

	loop.Step(context.Background())
	loop.Step(context.Background())
	assert.Equal(t, []int{0, 2}, seen)
}

func TestPollStepResponderErrorLeavesInput(t *testing.T) {
	source := &queueSource{pending: []port.Message{{ID: "1", Text: "hi"}}}
	sink := &memorySink{}
	responder := responderFunc(func(context.Context, []domain.ConversationTurn, string) (string, error) {
		return "", errors.New("llm down")
	})
	loop := NewPollLoop(source, sink, responder, PollOptions{}, nil)

	assert.False(t, loop.Step(context.Background()))
	assert.Zero(t, sink.count())
	assert.Len(t, source.pending, 1)
	assert.Empty(t, loop.History())
}

func TestPollRunUntilCancelled(t *testing.T) {
	source := &queueSource{pending: []port.Message{{ID: "1", Text: "hi"}}}
	sink := &memorySink{}
	loop := NewPollLoop(source, sink, echoResponder(), PollOptions{Interval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, loop.Running())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poll loop did not stop")
	}
	assert.False(t, loop.Running())
}
