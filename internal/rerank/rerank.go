// Package rerank reorders fused retrieval results with a cross-encoder
// reranking model. Reranking sees query and document together, so it
// corrects fusion mistakes at the cost of one extra API round trip.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/repotoire/repotoire/internal/model"
)

// Reranker reorders candidates by cross-encoder relevance to the query and
// returns at most topK of them, best first.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []model.RetrievalResult, topK int) ([]model.RetrievalResult, error)
}

// Voyage calls the Voyage AI rerank API.
type Voyage struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewVoyage creates a Voyage reranker. Empty url or model fall back to the
// hosted endpoint and the current rerank model.
func NewVoyage(url, apiKey, rerankModel string) *Voyage {
	if url == "" {
		url = "https://api.voyageai.com/v1/rerank"
	}
	if rerankModel == "" {
		rerankModel = "rerank-2.5"
	}
	return &Voyage{
		url:        url,
		apiKey:     apiKey,
		model:      rerankModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopK      int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Data []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

// Rerank scores each candidate against the query and returns the best topK
// in relevance order. Candidate scores are replaced by relevance scores.
func (v *Voyage) Rerank(ctx context.Context, query string, candidates []model.RetrievalResult, topK int) ([]model.RetrievalResult, error) {
	if len(candidates) == 0 || topK <= 0 {
		return nil, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = documentText(c)
	}

	reqBody, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: docs,
		Model:     v.model,
		TopK:      topK,
	})
	if err != nil {
		return nil, fmt.Errorf("rerank: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("rerank: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rerank: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank: status %d: %s", resp.StatusCode, string(body))
	}

	var result rerankResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("rerank: unmarshal response: %w", err)
	}

	out := make([]model.RetrievalResult, 0, topK)
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(candidates) {
			return nil, fmt.Errorf("rerank: invalid index %d in response", d.Index)
		}
		r := candidates[d.Index]
		if r.Metadata == nil {
			r.Metadata = make(map[string]any)
		}
		r.Metadata["originalScore"] = r.Score
		r.Score = d.RelevanceScore
		out = append(out, r)
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}

// documentCodeLimit caps how much source code feeds the cross-encoder per
// candidate. Rerank quality plateaus well before whole-file inputs.
const documentCodeLimit = 500

// documentText renders a candidate as the text the cross-encoder scores:
// name, docstring, and truncated source code.
func documentText(r model.RetrievalResult) string {
	var b strings.Builder
	b.WriteString(r.QualifiedName)
	if r.Docstring != "" {
		b.WriteString("\n")
		b.WriteString(r.Docstring)
	}
	if r.Code != "" {
		code := r.Code
		if len(code) > documentCodeLimit {
			code = code[:documentCodeLimit]
		}
		b.WriteString("\n")
		b.WriteString(code)
	}
	return b.String()
}
