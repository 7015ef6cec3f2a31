package port

import (
	"context"

	"alsrag/internal/domain"
)

// Message is one unit of external input for the responder.
type Message struct {
	ID   string
	Text string
}

// InputSource yields new messages for the poll loop.
type InputSource interface {
	// Next returns the pending message, if any.
	Next(ctx context.Context) (Message, bool, error)

	// Ack marks msg as handled and delivers the reply when the source supports it.
	Ack(ctx context.Context, msg Message, reply string) error
}

// OutputSink records a completed exchange.
type OutputSink interface {
	Write(ctx context.Context, turns []domain.ConversationTurn) error
}
