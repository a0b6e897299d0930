package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	localPrimaryModel  = "qwen3-embedding:0.6b"
	localPrimaryDims   = 1024
	localFallbackModel = "all-minilm"
	localFallbackDims  = 384
)

// LocalProvider generates embeddings using a local Ollama-compatible server.
// Embeddings stay on the machine and cost nothing, at lower quality than the
// hosted backends. If the primary model is not installed, the provider
// downgrades once to a small MiniLM model and stays there.
type LocalProvider struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger

	mu       sync.Mutex
	model    string
	dims     int
	degraded bool
}

// NewLocalProvider creates a provider that calls a local embedding server.
func NewLocalProvider(baseURL string, log *slog.Logger) *LocalProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &LocalProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
		model:      localPrimaryModel,
		dims:       localPrimaryDims,
	}
}

// Dimensions returns the active model's vector size. The value can shrink
// once if the provider degrades to the fallback model.
func (p *LocalProvider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dims
}

func (p *LocalProvider) Model() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model
}

type localEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type localEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates a single embedding vector from text.
func (p *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	model := p.model
	degraded := p.degraded
	p.mu.Unlock()

	vec, err := p.embedWith(ctx, model, text)
	if err == nil {
		return vec, nil
	}
	if degraded {
		return nil, err
	}

	// Primary model unavailable: downgrade once and retry.
	p.log.Warn("local embedding model unavailable, falling back",
		"primary", localPrimaryModel,
		"fallback", localFallbackModel,
		"error", err,
	)
	p.mu.Lock()
	p.model = localFallbackModel
	p.dims = localFallbackDims
	p.degraded = true
	p.mu.Unlock()

	return p.embedWith(ctx, localFallbackModel, text)
}

func (p *LocalProvider) embedWith(ctx context.Context, model, text string) ([]float32, error) {
	reqBody, err := json.Marshal(localEmbedRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embedding: local server status %d: %s", resp.StatusCode, string(body))
	}

	var result localEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embedding: empty embedding returned")
	}
	return result.Embedding, nil
}

// localMaxConcurrency bounds parallel requests so a single local GPU is not
// overwhelmed.
const localMaxConcurrency = 4

// EmbedBatch generates embeddings for multiple texts. The local API has no
// batch endpoint, so calls run concurrently under a bounded worker pool.
func (p *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) == 1 {
		vec, err := p.Embed(ctx, texts[0])
		if err != nil {
			return nil, err
		}
		return [][]float32{vec}, nil
	}

	vecs := make([][]float32, len(texts))
	errs := make([]error, len(texts))
	sem := make(chan struct{}, localMaxConcurrency)

	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		go func(idx int, t string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			vec, err := p.Embed(ctx, t)
			if err != nil {
				errs[idx] = fmt.Errorf("embedding: batch item %d: %w", idx, err)
				return
			}
			vecs[idx] = vec
		}(i, text)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return vecs, nil
}
