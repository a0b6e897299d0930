package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_Generate_PrependsSystemMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "be terse", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hi"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("key", "gpt-4o-mini")
	c.baseURL = srv.URL

	out, err := c.Generate(context.Background(), Request{
		System:    "be terse",
		Messages:  []Message{{Role: "user", Content: "hello"}},
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestOpenAIClient_Generate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit_error"},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("key", "")
	c.baseURL = srv.URL

	_, err := c.Generate(context.Background(), Request{Messages: []Message{{Role: "user", Content: "x"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestOpenAIClient_Generate_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewOpenAIClient("key", "")
	c.baseURL = srv.URL

	_, err := c.Generate(context.Background(), Request{Messages: []Message{{Role: "user", Content: "x"}}})
	assert.Error(t, err)
}
