// Package repotoire is the public API for embedding the Repotoire code
// intelligence engine: hybrid retrieval over a code knowledge graph, a
// grounded Ask mode, and an entitlement-gated best-of-N auto-fix pipeline.
//
//	client, err := repotoire.New(
//	    repotoire.WithLogger(logger),
//	)
//	if err != nil { ... }
//	defer client.Close(context.Background())
//
//	results, err := client.Search(ctx, "where is authentication handled", 10, nil, true)
//
// The import graph enforces a strict no-cycle rule: repotoire (root)
// imports internal/*, but internal/* never imports the root. Public types
// (Result, Fix, Decision, ...) are standalone structs; conversion helpers
// live in types.go because the root is the only package that sees both
// sides of the boundary.
package repotoire

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/repotoire/repotoire/internal/autofix"
	"github.com/repotoire/repotoire/internal/config"
	"github.com/repotoire/repotoire/internal/embedding"
	"github.com/repotoire/repotoire/internal/entitlements"
	"github.com/repotoire/repotoire/internal/graph"
	"github.com/repotoire/repotoire/internal/learning"
	"github.com/repotoire/repotoire/internal/llm"
	"github.com/repotoire/repotoire/internal/model"
	"github.com/repotoire/repotoire/internal/rerank"
	"github.com/repotoire/repotoire/internal/retrieval"
	"github.com/repotoire/repotoire/internal/sandbox"
	"github.com/repotoire/repotoire/internal/telemetry"
)

// Config mirrors the internal configuration for WithConfig callers. Field
// semantics match the REPOTOIRE_* environment variables.
type Config = config.Config

// Client is the engine lifecycle. Construct with New(), release with
// Close(). Client has no public fields — use New() options to configure it.
type Client struct {
	cfg          config.Config
	store        graph.Store
	retriever    *retrieval.Retriever
	asker        *retrieval.Asker
	generator    *autofix.Generator
	decisions    *learning.Store
	adapter      *learning.Adapter
	accountant   entitlements.Accountant
	otelShutdown telemetry.Shutdown
	log          *slog.Logger
}

// New wires the engine: graph store by dialect, embedding backend by
// auto-selection, LLM, optional reranker, sandbox, decision log, and the
// entitlement accountant. It makes no network calls — use Healthy to probe
// the graph backend.
func New(opts ...Option) (*Client, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	var cfg config.Config
	if o.cfg != nil {
		cfg = *o.cfg
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return nil, err
		}
	}
	if o.decisionLogPath != "" {
		cfg.DecisionLogPath = o.decisionLogPath
	}

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, "", cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Graph store — external override takes priority over the dialect wiring.
	var store graph.Store
	if o.store != nil {
		store = &graphStoreAdapter{s: o.store}
	} else {
		store, err = newGraphStore(cfg, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, err
		}
	}
	logger.Info("graph store", "dialect", cfg.GraphDialect, "addr", cfg.GraphAddr)

	// Embedding backend.
	var embedder embedding.Provider
	if o.embedder != nil {
		embedder = embeddingAdapter{p: o.embedder}
		logger.Info("embedding provider: external override", "model", embedder.Model())
	} else {
		sel, err := embedding.Select(embedding.Config{
			Backend:         cfg.EmbeddingBackend,
			VoyageAPIKey:    cfg.VoyageAPIKey,
			OpenAIAPIKey:    cfg.OpenAIAPIKey,
			DeepInfraAPIKey: cfg.DeepInfraAPIKey,
			LocalURL:        cfg.LocalEmbedURL,
		}, logger)
		if err != nil {
			_ = store.Close(context.Background())
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("embedding: %w", err)
		}
		embedder = sel.Provider
		logger.Info("embedding provider", "backend", sel.Backend, "model", sel.Provider.Model(), "reason", sel.Reason)
	}

	// LLM.
	var generate llm.Client
	if o.llm != nil {
		generate = llmAdapter{c: o.llm}
	} else {
		switch cfg.LLMBackend {
		case "openai":
			generate = llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.LLMModel)
		default:
			generate = llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.LLMModel)
		}
	}
	logger.Info("llm", "backend", cfg.LLMBackend, "model", generate.Model())

	// Reranker. An external override enables reranking regardless of config.
	var reranker rerank.Reranker
	rerankEnabled := cfg.RerankEnabled
	if o.reranker != nil {
		reranker = rerankerAdapter{r: o.reranker}
		rerankEnabled = true
	} else if cfg.RerankEnabled && cfg.RerankAPIKey != "" {
		reranker = rerank.NewVoyage(cfg.RerankURL, cfg.RerankAPIKey, cfg.RerankModel)
	} else if cfg.RerankEnabled {
		logger.Warn("reranking enabled but no REPOTOIRE_RERANK_API_KEY, keeping fused order")
		rerankEnabled = false
	}

	snippets := retrieval.NewSnippetRenderer(cfg.RepoRoot, cfg.ContextLines)
	retriever := retrieval.NewRetriever(store, embedder, reranker, snippets, retrieval.Config{
		Dialect:          graph.Dialect(cfg.GraphDialect),
		TenantID:         cfg.TenantID,
		DenseTopK:        cfg.DenseTopK,
		BM25TopK:         cfg.BM25TopK,
		FusionAlgorithm:  cfg.FusionAlgorithm,
		FusionAlpha:      cfg.FusionAlpha,
		RerankEnabled:    rerankEnabled,
		RerankTopK:       cfg.RerankTopK,
		RerankMultiplier: cfg.RerankMultiplier,
		MaxRelationships: cfg.MaxRelationships,
		CacheTTL:         cfg.CacheTTL,
		CacheMaxSize:     cfg.CacheMaxSize,
	}, logger)

	asker := retrieval.NewAsker(retriever, generate, cfg.LLMMaxTokens, logger)

	// Sandbox.
	var sb sandbox.Sandbox
	if o.sandbox != nil {
		sb = sandboxAdapter{s: o.sandbox}
	} else {
		sb = sandbox.NewLocal(sandbox.Config{
			RepoRoot:    cfg.RepoRoot,
			TestCommand: cfg.TestCommand,
			TestTimeout: cfg.TestTimeout,
		}, logger)
	}

	// Learning loop.
	decisions := learning.NewStore(cfg.DecisionLogPath, logger)
	adapter := learning.NewAdapter(decisions, logger)

	// Entitlements.
	var accountant entitlements.Accountant
	if o.accountant != nil {
		accountant = &accountantAdapter{a: o.accountant}
	} else {
		accountant = entitlements.NewMemoryAccountant()
	}

	generator := autofix.NewGenerator(generate, sb, adapter, accountant, retriever, autofix.Config{
		N:                      cfg.FixN,
		MinTestPassRate:        cfg.MinTestPassRate,
		MaxConcurrentSandboxes: cfg.MaxConcurrentSandboxes,
	}, logger)

	return &Client{
		cfg:          cfg,
		store:        store,
		retriever:    retriever,
		asker:        asker,
		generator:    generator,
		decisions:    decisions,
		adapter:      adapter,
		accountant:   accountant,
		otelShutdown: otelShutdown,
		log:          logger,
	}, nil
}

// Search runs hybrid retrieval for a natural-language query. kinds limits
// results to the given entity kinds ("function", "class", "file"); nil
// means all. includeRelated attaches each result's one-hop graph
// neighborhood; pass false to skip the extra graph queries.
func (c *Client) Search(ctx context.Context, query string, topK int, kinds []string, includeRelated bool) ([]Result, error) {
	results, err := c.retriever.Search(ctx, query, topK, toInternalKinds(kinds), includeRelated)
	if err != nil {
		return nil, err
	}
	return toPublicResults(results), nil
}

// Traverse walks the graph from a start entity along the given edge types
// up to maxHops, returning reachable entities scored by distance. Empty
// edgeTypes defaults to CALLS, USES, INHERITS, IMPORTS, and CONTAINS.
func (c *Client) Traverse(ctx context.Context, start string, edgeTypes []string, maxHops, limit int) ([]Result, error) {
	results, err := c.retriever.Traverse(ctx, start, toInternalEdgeTypes(edgeTypes), maxHops, limit)
	if err != nil {
		return nil, err
	}
	return toPublicResults(results), nil
}

// Ask answers a question about the codebase, grounded in retrieved code.
func (c *Client) Ask(ctx context.Context, query string) (Answer, error) {
	ans, err := c.asker.Ask(ctx, query)
	if err != nil {
		return Answer{}, err
	}
	return toPublicAnswer(ans), nil
}

// GenerateFix runs the best-of-N pipeline for a finding. It fails with
// *entitlements.NotEntitledError or *entitlements.UsageLimitError before
// any model spend when the customer is not entitled.
func (c *Client) GenerateFix(ctx context.Context, finding Finding, customerID string) (Fix, error) {
	if !model.ValidFixType(model.FixType(finding.FixType)) {
		return Fix{}, fmt.Errorf("repotoire: unknown fix type %q", finding.FixType)
	}
	proposal, err := c.generator.Generate(ctx, toInternalFinding(finding), customerID)
	if err != nil {
		return Fix{}, err
	}
	return toPublicFix(proposal), nil
}

// RecordDecision appends a human decision on a fix to the decision log.
// Future fix generation for the same fix type reads this history.
func (c *Client) RecordDecision(d Decision) error {
	return c.decisions.Record(toInternalDecision(d))
}

// InsightsFor summarizes decision history for one fix type.
func (c *Client) InsightsFor(fixType string) (Insights, error) {
	ins, err := c.decisions.InsightsFor(model.FixType(fixType))
	if err != nil {
		return Insights{}, err
	}
	return toPublicInsights(ins), nil
}

// EntitlementFor resolves a customer's auto-fix entitlement, including
// this month's usage.
func (c *Client) EntitlementFor(ctx context.Context, customerID string) (Entitlement, error) {
	ent, err := c.accountant.Entitlement(ctx, customerID)
	if err != nil {
		return Entitlement{}, err
	}
	return toPublicEntitlement(ent), nil
}

// Stats reports indexed graph sizes and cache effectiveness.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	gs, err := c.retriever.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	decisions, err := c.decisions.All()
	if err != nil {
		c.log.Warn("stats: decision log unreadable", "error", err)
	}
	return Stats{
		Functions:    gs.Functions,
		Classes:      gs.Classes,
		Files:        gs.Files,
		Edges:        gs.Edges,
		CacheSize:    gs.Cache.Size,
		CacheHits:    gs.Cache.Hits,
		CacheMisses:  gs.Cache.Misses,
		CacheHitRate: gs.Cache.HitRate,
		Decisions:    len(decisions),
	}, nil
}

// Healthy reports whether the graph backend is reachable. The result is
// cached briefly, so this is safe to call on every request.
func (c *Client) Healthy(ctx context.Context) error {
	return c.store.Healthy(ctx)
}

// Close releases the graph connection and flushes telemetry.
func (c *Client) Close(ctx context.Context) error {
	err := c.store.Close(ctx)
	if shutdownErr := c.otelShutdown(ctx); err == nil {
		err = shutdownErr
	}
	return err
}

// newGraphStore builds the dialect-appropriate store. config.Validate
// already rejected unknown dialects.
func newGraphStore(cfg config.Config, logger *slog.Logger) (graph.Store, error) {
	switch cfg.GraphDialect {
	case "neo4j":
		store, err := graph.NewNeo4j(graph.Neo4jConfig{
			URI:      cfg.GraphAddr,
			User:     cfg.GraphUser,
			Password: cfg.GraphPassword,
			Database: cfg.GraphDatabase,
		})
		if err != nil {
			return nil, fmt.Errorf("neo4j: %w", err)
		}
		return store, nil
	default:
		return graph.NewFalkor(graph.FalkorConfig{
			Addr:     cfg.GraphAddr,
			Graph:    cfg.GraphName,
			User:     cfg.GraphUser,
			Password: cfg.GraphPassword,
		}, logger), nil
	}
}

// ── Adapters (defined here because this file imports both sides) ─────────

// graphStoreAdapter wraps a public GraphStore to satisfy graph.Store.
type graphStoreAdapter struct {
	s GraphStore
}

func (a *graphStoreAdapter) ExecuteQuery(ctx context.Context, statement string, params map[string]any) ([]graph.Row, error) {
	rows, err := a.s.ExecuteQuery(ctx, statement, params)
	if err != nil {
		return nil, err
	}
	out := make([]graph.Row, len(rows))
	for i, r := range rows {
		out[i] = graph.Row(r)
	}
	return out, nil
}

func (a *graphStoreAdapter) Healthy(ctx context.Context) error { return a.s.Healthy(ctx) }
func (a *graphStoreAdapter) Close(ctx context.Context) error   { return a.s.Close(ctx) }

// embeddingAdapter wraps a public EmbeddingProvider to satisfy
// embedding.Provider. The method sets are identical; the wrapper exists so
// internal packages never name a public type.
type embeddingAdapter struct {
	p EmbeddingProvider
}

func (a embeddingAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	return a.p.Embed(ctx, text)
}

func (a embeddingAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return a.p.EmbedBatch(ctx, texts)
}

func (a embeddingAdapter) Dimensions() int { return a.p.Dimensions() }
func (a embeddingAdapter) Model() string   { return a.p.Model() }

// llmAdapter wraps a public LLM to satisfy llm.Client. Multi-turn
// conversations flatten to a single user prompt at this boundary.
type llmAdapter struct {
	c LLM
}

func (a llmAdapter) Generate(ctx context.Context, req llm.Request) (string, error) {
	var user string
	for _, m := range req.Messages {
		if m.Role == "user" {
			user = m.Content
		}
	}
	return a.c.Generate(ctx, req.System, user, req.MaxTokens, req.Temperature)
}

func (a llmAdapter) Model() string { return a.c.Model() }

// rerankerAdapter wraps a public Reranker to satisfy rerank.Reranker.
type rerankerAdapter struct {
	r Reranker
}

func (a rerankerAdapter) Rerank(ctx context.Context, query string, candidates []model.RetrievalResult, topK int) ([]model.RetrievalResult, error) {
	pub := toPublicResults(candidates)
	reranked, err := a.r.Rerank(ctx, query, pub, topK)
	if err != nil {
		return nil, err
	}
	if len(reranked) > topK {
		reranked = reranked[:topK]
	}
	out := make([]model.RetrievalResult, len(reranked))
	for i, r := range reranked {
		out[i] = toInternalResult(r)
	}
	return out, nil
}

// sandboxAdapter wraps a public Sandbox to satisfy sandbox.Sandbox.
type sandboxAdapter struct {
	s Sandbox
}

func (a sandboxAdapter) Verify(ctx context.Context, proposal model.FixProposal) (model.VerificationResult, error) {
	res, err := a.s.Verify(ctx, toPublicFix(proposal))
	if err != nil {
		return model.VerificationResult{}, err
	}
	return toInternalVerification(res), nil
}

// accountantAdapter wraps a public Accountant to satisfy
// entitlements.Accountant.
type accountantAdapter struct {
	a Accountant
}

func (a *accountantAdapter) Entitlement(ctx context.Context, customerID string) (model.Entitlement, error) {
	ent, err := a.a.Entitlement(ctx, customerID)
	if err != nil {
		return model.Entitlement{}, err
	}
	return toInternalEntitlement(ent), nil
}

func (a *accountantAdapter) RecordRun(ctx context.Context, customerID string) error {
	return a.a.RecordRun(ctx, customerID)
}
