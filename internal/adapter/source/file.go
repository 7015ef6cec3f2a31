// Package source provides the agent's message sources and output sinks.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"alsrag/internal/domain"
	"alsrag/internal/port"
)

// FileSource reads one pending message from a JSON file of the form
// {"message": "...", "processed": false}.
type FileSource struct {
	path   string
	logger *zap.Logger
}

func NewFileSource(path string, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{path: path, logger: logger}
}

func (s *FileSource) Path() string {
	return s.path
}

// Next returns the message when it has not been processed yet. A missing or
// corrupt file is replaced with an empty, processed one.
func (s *FileSource) Next(_ context.Context) (port.Message, bool, error) {
	data, err := s.read()
	if err != nil {
		s.logger.Debug("resetting input file", zap.String("path", s.path), zap.Error(err))
		if err := writeJSON(s.path, map[string]any{"message": "", "processed": true}); err != nil {
			return port.Message{}, false, fmt.Errorf("failed to create input file: %w", err)
		}
		return port.Message{}, false, nil
	}

	processed, ok := data["processed"].(bool)
	if !ok {
		processed = true
	}
	if processed {
		return port.Message{}, false, nil
	}
	message, _ := data["message"].(string)
	return port.Message{ID: filepath.Base(s.path), Text: message}, true, nil
}

// Ack marks the file as processed, keeping any other fields it holds.
func (s *FileSource) Ack(_ context.Context, _ port.Message, _ string) error {
	data, err := s.read()
	if err != nil {
		return nil
	}
	data["processed"] = true
	if err := writeJSON(s.path, data); err != nil {
		return fmt.Errorf("failed to mark input processed: %w", err)
	}
	return nil
}

func (s *FileSource) read() (map[string]any, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.New("input file holds null")
	}
	return data, nil
}

// FileSink overwrites a JSON file with the latest exchange.
type FileSink struct {
	path string
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

type output struct {
	Messages []domain.ConversationTurn `json:"messages"`
}

// EnsureExists writes an empty message list when the file is missing.
func (s *FileSink) EnsureExists() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat output file: %w", err)
	}
	return s.Write(context.Background(), nil)
}

func (s *FileSink) Write(_ context.Context, turns []domain.ConversationTurn) error {
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	if err := writeJSON(s.path, output{Messages: turns}); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
