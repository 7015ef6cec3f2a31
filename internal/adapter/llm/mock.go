package llm

import (
	"context"
	"sync"

	"alsrag/internal/port"
)

// Mock answers every request with Reply, recording what it was asked.
type Mock struct {
	Reply func(req port.ChatRequest) (string, error)

	mu       sync.Mutex
	requests []port.ChatRequest
}

func (m *Mock) Complete(_ context.Context, req port.ChatRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Reply == nil {
		return `{"title": "Mock title", "summary": "Mock summary"}`, nil
	}
	return m.Reply(req)
}

func (m *Mock) ModelName() string {
	return "mock"
}

// Requests returns a copy of the requests seen so far.
func (m *Mock) Requests() []port.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]port.ChatRequest(nil), m.requests...)
}
