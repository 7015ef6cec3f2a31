package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"alsrag/internal/port"
)

// TweetSource polls an HTTP endpoint that serves the latest tweet as
// {"id": "...", "text": "..."} and yields each id once.
type TweetSource struct {
	tweetURL string
	replyURL string
	client   *http.Client
	logger   *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

type tweet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type reply struct {
	InReplyTo string `json:"in_reply_to"`
	Text      string `json:"text"`
}

// NewTweetSource creates a source reading tweetURL. Replies are POSTed to
// replyURL when it is set.
func NewTweetSource(tweetURL, replyURL string, timeout time.Duration, logger *zap.Logger) *TweetSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TweetSource{
		tweetURL: tweetURL,
		replyURL: replyURL,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		seen:     make(map[string]struct{}),
	}
}

func (s *TweetSource) Next(ctx context.Context) (port.Message, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.tweetURL, nil)
	if err != nil {
		return port.Message{}, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return port.Message{}, false, fmt.Errorf("failed to fetch tweet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return port.Message{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return port.Message{}, false, fmt.Errorf("tweet endpoint returned status %d", resp.StatusCode)
	}

	var t tweet
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&t); err != nil {
		return port.Message{}, false, fmt.Errorf("failed to decode tweet: %w", err)
	}
	if t.ID == "" || t.Text == "" {
		return port.Message{}, false, nil
	}

	s.mu.Lock()
	_, done := s.seen[t.ID]
	s.mu.Unlock()
	if done {
		return port.Message{}, false, nil
	}
	return port.Message{ID: t.ID, Text: t.Text}, true, nil
}

// Ack records msg as handled and posts the reply if a reply URL is configured.
// A failed post is returned but the id stays marked so it is not answered twice.
func (s *TweetSource) Ack(ctx context.Context, msg port.Message, text string) error {
	s.mu.Lock()
	s.seen[msg.ID] = struct{}{}
	s.mu.Unlock()

	if s.replyURL == "" {
		return nil
	}

	body, err := json.Marshal(reply{InReplyTo: msg.ID, Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.replyURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post reply: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("reply endpoint returned status %d", resp.StatusCode)
	}
	s.logger.Info("posted reply", zap.String("in_reply_to", msg.ID))
	return nil
}
