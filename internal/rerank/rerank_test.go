package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repotoire/repotoire/internal/model"
)

func candidates() []model.RetrievalResult {
	return []model.RetrievalResult{
		{QualifiedName: "a", Score: 0.1},
		{QualifiedName: "b", Score: 0.2, Docstring: "does b things"},
		{QualifiedName: "c", Score: 0.3, Code: "def c(): pass"},
	}
}

func TestVoyage_Rerank_ReordersAndCaps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer rk", r.Header.Get("Authorization"))

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "how", req.Query)
		require.Len(t, req.Documents, 3)
		assert.Contains(t, req.Documents[1], "does b things")

		// The API returns results already sorted by relevance, and can
		// return more than asked; the client must still cap at topK.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 2, "relevance_score": 0.95},
				{"index": 0, "relevance_score": 0.60},
				{"index": 1, "relevance_score": 0.10},
			},
		})
	}))
	defer srv.Close()

	v := NewVoyage(srv.URL, "rk", "")
	out, err := v.Rerank(context.Background(), "how", candidates(), 2)
	require.NoError(t, err)
	require.Len(t, out, 2, "output never exceeds topK")
	assert.Equal(t, "c", out[0].QualifiedName)
	assert.InDelta(t, 0.95, out[0].Score, 1e-9, "score replaced by relevance")
	assert.Equal(t, "a", out[1].QualifiedName)

	// The pre-rerank score survives in metadata.
	assert.InDelta(t, 0.3, out[0].Metadata["originalScore"].(float64), 1e-9)
	assert.InDelta(t, 0.1, out[1].Metadata["originalScore"].(float64), 1e-9)
}

func TestDocumentText_TruncatesCode(t *testing.T) {
	long := model.RetrievalResult{
		QualifiedName: "big.fn",
		Docstring:     "does a lot",
		Code:          strings.Repeat("x", 2000),
	}
	doc := documentText(long)
	assert.LessOrEqual(t, len(doc), len("big.fn")+len("does a lot")+documentCodeLimit+2)
	assert.Contains(t, doc, "big.fn")
	assert.Contains(t, doc, "does a lot")
}

func TestVoyage_Rerank_EmptyInput(t *testing.T) {
	v := NewVoyage("http://unused", "rk", "")
	out, err := v.Rerank(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = v.Rerank(context.Background(), "q", candidates(), 0)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestVoyage_Rerank_BadIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 99, "relevance_score": 0.5}},
		})
	}))
	defer srv.Close()

	v := NewVoyage(srv.URL, "rk", "")
	_, err := v.Rerank(context.Background(), "q", candidates(), 2)
	assert.Error(t, err)
}
