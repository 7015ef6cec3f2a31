package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alsrag/internal/port"
)

func TestClientComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"title\":\"t\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", "gpt-4o-mini", 0)
	out, err := c.Complete(context.Background(), port.ChatRequest{
		Messages:   []port.ChatMessage{{Role: "user", Content: "hi"}},
		MaxTokens:  150,
		JSONObject: true,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"title":"t"}`, out)
	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.EqualValues(t, 150, got["max_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
}

func TestClientCompleteWithoutJSONMode(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"plain"}}]}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, "", "m", 0).Complete(context.Background(), port.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
	assert.NotContains(t, got, "response_format")
}

func TestClientCompleteErrors(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"server error": {http.StatusBadGateway, `oops`},
		"api error":    {http.StatusOK, `{"error":{"message":"quota"}}`},
		"no choices":   {http.StatusOK, `{"choices":[]}`},
		"bad json":     {http.StatusOK, `{`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "k", "m", 0).Complete(context.Background(), port.ChatRequest{})
			assert.Error(t, err)
		})
	}
}
