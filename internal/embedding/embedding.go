// Package embedding provides vector embedding generation for dense retrieval.
//
// Defines a Provider interface with Voyage, OpenAI-compatible, and local
// (Ollama-compatible) implementations. Backend auto-selection by available
// credentials lives in select.go.
package embedding

import "context"

// Provider generates vector embeddings from text.
type Provider interface {
	// Embed generates a single embedding vector from text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector dimensionality.
	Dimensions() int

	// Model returns the model identifier used by the provider.
	Model() string
}

// NoopProvider returns zero vectors. Used in tests and when retrieval should
// proceed without a real embedding backend.
type NoopProvider struct {
	dims int
}

// NewNoopProvider creates a provider that returns zero vectors.
func NewNoopProvider(dims int) *NoopProvider {
	return &NoopProvider{dims: dims}
}

func (p *NoopProvider) Dimensions() int { return p.dims }
func (p *NoopProvider) Model() string   { return "noop" }

func (p *NoopProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, p.dims), nil
}

func (p *NoopProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = make([]float32, p.dims)
	}
	return vecs, nil
}
