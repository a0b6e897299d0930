package repotoire

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		GraphDialect:           "falkordb",
		GraphAddr:              "localhost:6379",
		GraphName:              "repotoire",
		EmbeddingBackend:       "local",
		LocalEmbedURL:          "http://localhost:11434",
		LLMBackend:             "anthropic",
		DenseTopK:              10,
		BM25TopK:               10,
		FusionAlgorithm:        "rrf",
		FusionAlpha:            0.7,
		RerankTopK:             10,
		RerankMultiplier:       3,
		MaxRelationships:       20,
		ContextLines:           5,
		CacheTTL:               time.Hour,
		CacheMaxSize:           100,
		RepoRoot:               t.TempDir(),
		FixN:                   1,
		MinTestPassRate:        0.8,
		TestTimeout:            time.Minute,
		MaxConcurrentSandboxes: 1,
		DecisionLogPath:        filepath.Join(t.TempDir(), "decisions.jsonl"),
	}
}

// fakeGraph answers vector, fulltext, and expansion statements with canned
// rows keyed off statement substrings.
type fakeGraph struct {
	rows []map[string]any
}

func (f *fakeGraph) ExecuteQuery(_ context.Context, statement string, _ map[string]any) ([]map[string]any, error) {
	if strings.Contains(statement, "vector") || strings.Contains(statement, "fulltext") {
		return f.rows, nil
	}
	return nil, nil
}

func (f *fakeGraph) Healthy(context.Context) error { return nil }
func (f *fakeGraph) Close(context.Context) error   { return nil }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (fakeEmbedder) Dimensions() int { return 2 }
func (fakeEmbedder) Model() string   { return "fake-embed" }

type fakeLLM struct {
	response string
}

func (f fakeLLM) Generate(_ context.Context, _, _ string, _ int, _ float64) (string, error) {
	return f.response, nil
}

func (f fakeLLM) Model() string { return "fake-llm" }

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithConfig(testConfig(t)),
		WithLogger(slog.New(slog.DiscardHandler)),
	}
	c, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestNew_ValidatesConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.GraphDialect = "dgraph"
	_, err := New(WithConfig(cfg), WithLogger(slog.New(slog.DiscardHandler)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dialect")
}

func TestSearch_ThroughPublicAPI(t *testing.T) {
	store := &fakeGraph{rows: []map[string]any{{
		"nodeId":        "1",
		"qualifiedName": "auth.login",
		"name":          "login",
		"kind":          "function",
		"filePath":      "auth.py",
		"lineStart":     int64(10),
		"lineEnd":       int64(20),
		"score":         0.1,
	}}}

	c := newTestClient(t, WithGraphStore(store), WithEmbedder(fakeEmbedder{}))

	results, err := c.Search(context.Background(), "how does login work", 5, []string{"function"}, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "auth.login", results[0].QualifiedName)
	assert.Equal(t, "function", results[0].Kind)
	assert.Greater(t, results[0].Score, 0.0)

	// Relationship expansion is optional per call.
	lean, err := c.Search(context.Background(), "where is login defined", 5, []string{"function"}, false)
	require.NoError(t, err)
	require.Len(t, lean, 1)
	assert.Empty(t, lean[0].Relationships)

	// Unknown kinds are rejected at the boundary.
	_, err = c.Search(context.Background(), "how does login work", 5, []string{"package"}, true)
	assert.Error(t, err)
}

func TestAsk_ThroughPublicAPI(t *testing.T) {
	store := &fakeGraph{rows: []map[string]any{{
		"nodeId":        "1",
		"qualifiedName": "auth.login",
		"name":          "login",
		"kind":          "function",
		"filePath":      "auth.py",
		"lineStart":     int64(1),
		"lineEnd":       int64(2),
		"score":         0.2,
	}}}
	llm := fakeLLM{response: `{"answer": "Login verifies the hash.", "follow_ups": ["Where are sessions stored?"]}`}

	c := newTestClient(t, WithGraphStore(store), WithEmbedder(fakeEmbedder{}), WithLLM(llm))

	ans, err := c.Ask(context.Background(), "how does login work")
	require.NoError(t, err)
	assert.Equal(t, "Login verifies the hash.", ans.Answer)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "auth.login", ans.Sources[0].QualifiedName)
}

func TestGenerateFix_RejectsUnknownFixType(t *testing.T) {
	c := newTestClient(t, WithGraphStore(&fakeGraph{}), WithEmbedder(fakeEmbedder{}))

	_, err := c.GenerateFix(context.Background(), Finding{Description: "x", FixType: "rewrite_everything"}, "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown fix type")
}

func TestDecisionsAndInsights(t *testing.T) {
	c := newTestClient(t, WithGraphStore(&fakeGraph{}), WithEmbedder(fakeEmbedder{}))

	require.NoError(t, c.RecordDecision(Decision{
		FixID:    "fix-1",
		Decision: "approved",
		FixType:  "refactor",
	}))
	require.NoError(t, c.RecordDecision(Decision{
		FixID:           "fix-2",
		Decision:        "rejected",
		RejectionReason: "too_risky",
		FixType:         "refactor",
	}))

	ins, err := c.InsightsFor("refactor")
	require.NoError(t, err)
	assert.Equal(t, 2, ins.Total)
	assert.InDelta(t, 0.5, ins.ApprovalRate, 1e-9)
	assert.Equal(t, 1, ins.RejectionReasons["too_risky"])
}

func TestEntitlementFor_DefaultsToFree(t *testing.T) {
	c := newTestClient(t, WithGraphStore(&fakeGraph{}), WithEmbedder(fakeEmbedder{}))

	ent, err := c.EntitlementFor(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Equal(t, "free", ent.Tier)
	assert.Equal(t, "unavailable", ent.Access)
}

func TestHealthy_DelegatesToStore(t *testing.T) {
	c := newTestClient(t, WithGraphStore(&fakeGraph{}), WithEmbedder(fakeEmbedder{}))
	assert.NoError(t, c.Healthy(context.Background()))
}
