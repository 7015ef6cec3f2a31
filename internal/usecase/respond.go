package usecase

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"alsrag/internal/adapter/resilience"
	"alsrag/internal/domain"
	"alsrag/internal/port"
)

//go:embed templates/*.txt
var promptTemplates embed.FS

var prompts = template.Must(template.ParseFS(promptTemplates, "templates/*.txt"))

// RespondOptions tunes reply generation.
type RespondOptions struct {
	MaxChars     int
	HistoryLimit int
	MaxTokens    int
}

// RespondUseCase answers a user message with a short reply grounded in the
// stored documentation.
type RespondUseCase struct {
	retriever *RetrieveUseCase
	llm       port.LLM
	guard     *resilience.Guard
	opts      RespondOptions
	logger    *zap.Logger
}

// NewRespondUseCase creates a new respond use case. A nil guard calls the
// model directly.
func NewRespondUseCase(retriever *RetrieveUseCase, llm port.LLM, guard *resilience.Guard, opts RespondOptions, logger *zap.Logger) *RespondUseCase {
	if opts.MaxChars <= 0 {
		opts.MaxChars = 230
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 150
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = resilience.NewGuard(resilience.GuardConfig{Name: "respond"}, nil, logger)
	}
	return &RespondUseCase{
		retriever: retriever,
		llm:       llm,
		guard:     guard,
		opts:      opts,
		logger:    logger,
	}
}

// SystemPrompt renders the fixed reply instructions.
func (u *RespondUseCase) SystemPrompt() (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, "system.txt", struct{ MaxChars int }{u.opts.MaxChars}); err != nil {
		return "", fmt.Errorf("failed to render system prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// UserPrompt renders input together with the retrieved documentation.
func (u *RespondUseCase) UserPrompt(ctx context.Context, input string) (string, error) {
	docs := u.retriever.Retrieve(ctx, input, 0)

	var buf bytes.Buffer
	data := struct{ Context, Input string }{docs, input}
	if err := prompts.ExecuteTemplate(&buf, "user.txt", data); err != nil {
		return "", fmt.Errorf("failed to render user prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Respond produces a reply to input. history holds earlier turns, oldest
// first; only the most recent HistoryLimit are sent. LLM failures are returned.
func (u *RespondUseCase) Respond(ctx context.Context, history []domain.ConversationTurn, input string) (string, error) {
	system, err := u.SystemPrompt()
	if err != nil {
		return "", err
	}
	user, err := u.UserPrompt(ctx, input)
	if err != nil {
		return "", err
	}

	if len(history) > u.opts.HistoryLimit {
		history = history[len(history)-u.opts.HistoryLimit:]
	}

	messages := make([]port.ChatMessage, 0, len(history)+2)
	messages = append(messages, port.ChatMessage{Role: string(domain.RoleSystem), Content: system})
	for _, turn := range history {
		if turn.Role == domain.RoleSystem {
			continue
		}
		messages = append(messages, port.ChatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, port.ChatMessage{Role: string(domain.RoleUser), Content: user})

	start := time.Now()
	reply, err := resilience.Call(ctx, u.guard, func(ctx context.Context) (string, error) {
		return u.llm.Complete(ctx, port.ChatRequest{Messages: messages, MaxTokens: u.opts.MaxTokens})
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}
	u.logger.Debug("generated reply", zap.Duration("took", time.Since(start)))

	return Truncate(strings.TrimSpace(reply), u.opts.MaxChars), nil
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	return prefix(s, n)
}
