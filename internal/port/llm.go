package port

import "context"

// ChatMessage is a single message in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes one chat completion call.
type ChatRequest struct {
	Messages  []ChatMessage
	MaxTokens int
	// JSONObject asks the model to answer with a single JSON object.
	JSONObject bool
}

// LLM represents a language model for text generation.
type LLM interface {
	// Complete runs a chat completion and returns the first choice's content.
	Complete(ctx context.Context, req ChatRequest) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
