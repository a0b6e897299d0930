package repotoire

import "context"

// Extension interfaces. Implementations supplied through With* options
// replace the built-in collaborator; internal packages never see these
// types — adapters in repotoire.go convert at the boundary.

// GraphStore executes parameterized graph queries. Replaces the built-in
// FalkorDB/Neo4j client.
type GraphStore interface {
	// ExecuteQuery runs one statement and returns its rows as column maps.
	ExecuteQuery(ctx context.Context, statement string, params map[string]any) ([]map[string]any, error)

	// Healthy reports whether the backend is reachable.
	Healthy(ctx context.Context) error

	// Close releases the connection.
	Close(ctx context.Context) error
}

// EmbeddingProvider generates dense vectors for text. Replaces the
// auto-selected backend (Voyage/OpenAI/DeepInfra/local).
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// LLM generates text for Ask mode and fix candidates. Replaces the
// configured Anthropic/OpenAI client.
type LLM interface {
	// Generate returns the assistant's reply. system may be empty.
	Generate(ctx context.Context, system string, userPrompt string, maxTokens int, temperature float64) (string, error)

	// Model returns the model identifier in use.
	Model() string
}

// Reranker re-scores retrieval candidates against the query. Replaces the
// Voyage cross-encoder client.
type Reranker interface {
	// Rerank returns at most topK results, best first.
	Rerank(ctx context.Context, query string, candidates []Result, topK int) ([]Result, error)
}

// Sandbox verifies a fix against an isolated copy of the repository.
// Replaces the local temp-dir sandbox.
type Sandbox interface {
	Verify(ctx context.Context, fix Fix) (Verification, error)
}

// Accountant resolves entitlements and tracks monthly auto-fix usage.
// Replaces the in-memory accountant; production deployments back this with
// their billing system.
type Accountant interface {
	Entitlement(ctx context.Context, customerID string) (Entitlement, error)
	RecordRun(ctx context.Context, customerID string) error
}
