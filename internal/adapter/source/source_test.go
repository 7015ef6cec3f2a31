package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alsrag/internal/domain"
	"alsrag/internal/port"
)

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var data map[string]any
	require.NoError(t, json.Unmarshal(raw, &data))
	return data
}

func TestFileSourceCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.json")
	src := NewFileSource(path, nil)

	_, ok, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	data := readJSON(t, path)
	assert.Equal(t, "", data["message"])
	assert.Equal(t, true, data["processed"])
}

func TestFileSourceResetsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, ok, err := NewFileSource(path, nil).Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, true, readJSON(t, path)["processed"])
}

func TestFileSourcePendingMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"message": "What is ALS?", "processed": false, "from": "web"}`), 0644))
	src := NewFileSource(path, nil)
	ctx := context.Background()

	msg, ok, err := src.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "What is ALS?", msg.Text)

	require.NoError(t, src.Ack(ctx, msg, "reply"))

	data := readJSON(t, path)
	assert.Equal(t, true, data["processed"])
	assert.Equal(t, "web", data["from"])

	_, ok, err = src.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "output.json")
	sink := NewFileSink(path)

	require.NoError(t, sink.EnsureExists())
	assert.Equal(t, []any{}, readJSON(t, path)["messages"])

	turns := []domain.ConversationTurn{
		{Role: domain.RoleUser, Timestamp: "2025-01-01T00:00:00.000000", Content: "q"},
		{Role: domain.RoleAssistant, Timestamp: "2025-01-01T00:00:01.000000", Content: "a"},
	}
	require.NoError(t, sink.Write(context.Background(), turns))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var out output
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, turns, out.Messages)

	// an existing file is left alone
	require.NoError(t, sink.EnsureExists())
	require.NoError(t, json.Unmarshal(mustRead(t, path), &out))
	assert.Len(t, out.Messages, 2)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return raw
}

func TestTweetSource(t *testing.T) {
	var mu sync.Mutex
	var replies []reply
	mux := http.NewServeMux()
	mux.HandleFunc("/tweet", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "42", "text": "How fast does ALS progress?"}`))
	})
	mux.HandleFunc("/reply", func(w http.ResponseWriter, r *http.Request) {
		var rp reply
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&rp))
		mu.Lock()
		replies = append(replies, rp)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := NewTweetSource(srv.URL+"/tweet", srv.URL+"/reply", 0, nil)
	ctx := context.Background()

	msg, ok, err := src.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, port.Message{ID: "42", Text: "How fast does ALS progress?"}, msg)

	require.NoError(t, src.Ack(ctx, msg, "Avg survival 2-5 yrs."))

	_, ok, err = src.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a seen id must not be yielded again")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, replies, 1)
	assert.Equal(t, reply{InReplyTo: "42", Text: "Avg survival 2-5 yrs."}, replies[0])
}

func TestTweetSourceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	_, ok, err := NewTweetSource(srv.URL+"/empty", "", 0, nil).Next(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = NewTweetSource(srv.URL+"/down", "", 0, nil).Next(context.Background())
	assert.ErrorContains(t, err, "status 502")
}
