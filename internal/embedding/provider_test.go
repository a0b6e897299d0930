package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_EmbedBatch_PreservesInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 2)

		// Reply with indices out of order to verify reordering.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.2, 0.2}, "index": 1},
				{"embedding": []float32{0.1, 0.1}, "index": 0},
			},
		})
	}))
	defer srv.Close()

	p := newOpenAICompatible(srv.URL, "test-key", "text-embedding-3-small", 1536)
	vecs, err := p.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.1}, vecs[0])
	assert.Equal(t, []float32{0.2, 0.2}, vecs[1])
}

func TestOpenAIProvider_EmbedBatch_ShortResponseErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// One vector for two inputs.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.1}, "index": 0}},
		})
	}))
	defer srv.Close()

	p := newOpenAICompatible(srv.URL, "test-key", "text-embedding-3-small", 1536)
	_, err := p.EmbedBatch(context.Background(), []string{"first", "second"})
	require.Error(t, err, "a nil vector must never reach vector search")
	assert.Contains(t, err.Error(), "missing embedding")
}

func TestOpenAIProvider_EmbedBatch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "bad key", "type": "invalid_request_error"},
		})
	}))
	defer srv.Close()

	p := newOpenAICompatible(srv.URL, "bad", "text-embedding-3-small", 1536)
	_, err := p.EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestVoyageProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer vk", r.Header.Get("Authorization"))
		var req voyageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, voyageModel, req.Model)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{1, 2, 3}, "index": 0}},
		})
	}))
	defer srv.Close()

	p := NewVoyageProvider("vk")
	p.url = srv.URL
	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestLocalProvider_DegradesToFallbackModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req localEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Model == localPrimaryModel {
			// Primary model not installed.
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(localEmbedResponse{Embedding: make([]float32, localFallbackDims)})
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL, testLogger())
	require.Equal(t, localPrimaryDims, p.Dimensions())

	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, localFallbackDims)

	// Downgrade sticks.
	assert.Equal(t, localFallbackDims, p.Dimensions())
	assert.Equal(t, localFallbackModel, p.Model())
}

func TestNoopProvider_ZeroVectors(t *testing.T) {
	p := NewNoopProvider(4)
	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0, 0, 0, 0}, vecs[0])
}
