package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/repotoire/repotoire/internal/embedding"
	"github.com/repotoire/repotoire/internal/graph"
	"github.com/repotoire/repotoire/internal/model"
	"github.com/repotoire/repotoire/internal/rerank"
	"github.com/repotoire/repotoire/internal/telemetry"
)

// Config tunes the hybrid search pipeline.
type Config struct {
	Dialect          graph.Dialect
	TenantID         string
	DenseTopK        int
	BM25TopK         int
	FusionAlgorithm  string // "rrf" or "linear"
	FusionAlpha      float64
	RerankEnabled    bool
	RerankTopK       int
	RerankMultiplier int
	MaxRelationships int
	CacheTTL         time.Duration
	CacheMaxSize     int
}

// Retriever runs hybrid search against the code graph.
type Retriever struct {
	store    graph.Store
	embedder embedding.Provider
	reranker rerank.Reranker // nil when reranking is disabled
	snippets *SnippetRenderer
	cache    *Cache
	cfg      Config
	log      *slog.Logger

	searchDuration metric.Float64Histogram
	cacheHits      metric.Int64Counter
	searches       metric.Int64Counter
}

// NewRetriever wires the search pipeline. reranker may be nil, in which
// case fused order is final.
func NewRetriever(store graph.Store, embedder embedding.Provider, reranker rerank.Reranker, snippets *SnippetRenderer, cfg Config, log *slog.Logger) *Retriever {
	meter := telemetry.Meter("repotoire/retrieval")
	searchDur, _ := meter.Float64Histogram("repotoire.search.duration",
		metric.WithDescription("End-to-end search latency (ms)"),
		metric.WithUnit("ms"),
	)
	cacheHits, _ := meter.Int64Counter("repotoire.search.cache_hits",
		metric.WithDescription("Search results served from cache"),
	)
	searches, _ := meter.Int64Counter("repotoire.search.requests",
		metric.WithDescription("Search requests by outcome"),
	)
	return &Retriever{
		store:          store,
		embedder:       embedder,
		reranker:       reranker,
		snippets:       snippets,
		cache:          NewCache(cfg.CacheMaxSize, cfg.CacheTTL),
		cfg:            cfg,
		log:            log,
		searchDuration: searchDur,
		cacheHits:      cacheHits,
		searches:       searches,
	}
}

// Cache exposes the result cache for stats and invalidation.
func (r *Retriever) Cache() *Cache { return r.cache }

// Search runs hybrid retrieval for a natural-language query. kinds limits
// results to the given entity kinds; nil means all kinds. includeRelated
// controls one-hop relationship expansion on the retained results. Results
// come back best-first with snippets attached.
func (r *Retriever) Search(ctx context.Context, query string, topK int, kinds []model.EntityKind, includeRelated bool) ([]model.RetrievalResult, error) {
	start := time.Now()

	// 1. Validate inputs before touching any backend.
	if issues := model.ValidateQuery(query, topK); issues.HasErrors() {
		return nil, fmt.Errorf("retrieval: %s", issues.Error())
	}
	if len(kinds) == 0 {
		kinds = model.AllEntityKinds
	}
	if issues := model.ValidateKinds(kinds); issues.HasErrors() {
		return nil, fmt.Errorf("retrieval: %s", issues.Error())
	}
	if topK == 0 {
		return []model.RetrievalResult{}, nil
	}

	// 2. Cache lookup. Cached entries are fully enriched; a caller that
	// opted out of relationships gets them stripped from the clone.
	key := CacheKey(query, topK, kinds)
	if cached := r.cache.Get(key); cached != nil {
		if !includeRelated {
			for i := range cached {
				cached[i].Relationships = nil
			}
		}
		r.cacheHits.Add(ctx, 1)
		r.searches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "cache_hit")))
		return cached, nil
	}

	// 3. Embed the query. This is the only failure that surfaces to the
	// caller; everything downstream degrades.
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.searches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	// 4. Dense and sparse branches in parallel. Each branch tolerates its
	// own failure; both failing yields an empty result set, not an error.
	var dense, sparse []model.RetrievalResult
	var denseErr, sparseErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dense, denseErr = r.denseSearch(gctx, vec, kinds)
		if denseErr != nil {
			r.log.Warn("dense search failed, continuing with keyword results", "error", denseErr)
		}
		return nil
	})
	g.Go(func() error {
		sparse, sparseErr = r.sparseSearch(gctx, query, kinds)
		if sparseErr != nil {
			r.log.Warn("keyword search failed, continuing with dense results", "error", sparseErr)
		}
		return nil
	})
	_ = g.Wait()

	if denseErr != nil && sparseErr != nil {
		r.log.Warn("both search branches failed, returning no results")
		r.searches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "empty")))
		return []model.RetrievalResult{}, nil
	}

	// 5. Fuse the branch rankings.
	var fused []model.RetrievalResult
	if r.cfg.FusionAlgorithm == "linear" {
		fused = FuseLinear(dense, sparse, r.cfg.FusionAlpha)
	} else {
		fused = FuseRRF(dense, sparse)
	}

	// 6. Optional cross-encoder rerank over an expanded candidate window.
	// The reranker scores rendered text including source code, so snippets
	// are attached to the window up front.
	results := fused
	if r.reranker != nil && r.cfg.RerankEnabled && len(fused) > 0 {
		keep := r.cfg.RerankTopK
		if keep <= 0 || keep > topK {
			keep = topK
		}
		window := keep * r.cfg.RerankMultiplier
		if window > len(fused) {
			window = len(fused)
		}
		r.attachSnippets(fused[:window])
		reranked, err := r.reranker.Rerank(ctx, query, fused[:window], keep)
		if err != nil {
			r.log.Warn("rerank failed, keeping fused order", "error", err)
		} else {
			results = reranked
		}
	}
	if len(results) > topK {
		results = results[:topK]
	}

	// 7. Enrich with graph relationships and file snippets.
	if includeRelated {
		r.attachRelationships(ctx, results)
	}
	r.attachSnippets(results)

	// 8. Store and record. Only fully enriched result sets are cached, so
	// a hit can always serve both includeRelated settings.
	if includeRelated {
		r.cache.Put(key, results)
	}
	r.searchDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	r.searches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	return results, nil
}

// denseSearch runs per-kind vector KNN with the pre-embedded query.
func (r *Retriever) denseSearch(ctx context.Context, vec []float32, kinds []model.EntityKind) ([]model.RetrievalResult, error) {
	var all []model.RetrievalResult
	for _, kind := range kinds {
		stmt, err := graph.VectorSearchQuery(r.cfg.Dialect, kind)
		if err != nil {
			return nil, err
		}
		rows, err := r.store.ExecuteQuery(ctx, stmt, map[string]any{
			"topK":      r.cfg.DenseTopK,
			"embedding": vec,
			"tenantId":  r.cfg.TenantID,
		})
		if err != nil {
			return nil, fmt.Errorf("vector search %s: %w", kind, err)
		}
		all = append(all, rowsToResults(rows)...)
	}

	// FalkorDB vector scores are cosine distances; convert to a similarity
	// so both dialects rank and fuse with higher-is-better scores.
	if r.cfg.Dialect == graph.DialectFalkorDB {
		for i := range all {
			all[i].Score = 1.0 / (1.0 + all[i].Score)
		}
	}
	sortByScore(all, false)
	all = dedupeByName(all)
	if len(all) > r.cfg.DenseTopK {
		all = all[:r.cfg.DenseTopK]
	}
	return all, nil
}

// sparseSearch runs per-kind BM25 fulltext queries with the raw query
// escaped for Lucene syntax.
func (r *Retriever) sparseSearch(ctx context.Context, query string, kinds []model.EntityKind) ([]model.RetrievalResult, error) {
	escaped := EscapeLucene(query)

	var all []model.RetrievalResult
	for _, kind := range kinds {
		stmt, err := graph.FulltextSearchQuery(r.cfg.Dialect, kind)
		if err != nil {
			return nil, err
		}
		rows, err := r.store.ExecuteQuery(ctx, stmt, map[string]any{
			"query":    escaped,
			"limit":    r.cfg.BM25TopK,
			"tenantId": r.cfg.TenantID,
		})
		if err != nil {
			return nil, fmt.Errorf("fulltext search %s: %w", kind, err)
		}
		all = append(all, rowsToResults(rows)...)
	}

	sortByScore(all, false)
	all = dedupeByName(all)
	if len(all) > r.cfg.BM25TopK {
		all = all[:r.cfg.BM25TopK]
	}
	return all, nil
}

// Traverse walks the graph from a start entity along the given edge types,
// up to maxHops, returning reachable entities enriched the same way Search
// results are.
func (r *Retriever) Traverse(ctx context.Context, start string, edgeTypes []model.EdgeType, maxHops, limit int) ([]model.RetrievalResult, error) {
	if len(edgeTypes) == 0 {
		edgeTypes = model.TraversalEdgeTypes
	}
	if issues := model.ValidateTraversal(start, edgeTypes, maxHops); issues.HasErrors() {
		return nil, fmt.Errorf("retrieval: %s", issues.Error())
	}
	if limit <= 0 {
		limit = 50
	}

	stmt, err := graph.TraversalQuery(r.cfg.Dialect, edgeTypes, maxHops)
	if err != nil {
		return nil, err
	}
	rows, err := r.store.ExecuteQuery(ctx, stmt, map[string]any{
		"start":    start,
		"limit":    limit,
		"tenantId": r.cfg.TenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: traverse: %w", err)
	}
	results := rowsToResults(rows)
	r.attachRelationships(ctx, results)
	r.attachSnippets(results)
	return results, nil
}

// GraphStats summarizes the indexed graph plus cache effectiveness.
type GraphStats struct {
	Functions int        `json:"functions"`
	Classes   int        `json:"classes"`
	Files     int        `json:"files"`
	Edges     int        `json:"edges"`
	Cache     CacheStats `json:"cache"`
}

// Stats counts indexed entities and relationships.
func (r *Retriever) Stats(ctx context.Context) (GraphStats, error) {
	stats := GraphStats{Cache: r.cache.Stats()}

	counts := map[model.EntityKind]*int{
		model.KindFunction: &stats.Functions,
		model.KindClass:    &stats.Classes,
		model.KindFile:     &stats.Files,
	}
	for _, kind := range model.AllEntityKinds {
		stmt, err := graph.NodeCountQuery(r.cfg.Dialect, kind)
		if err != nil {
			return GraphStats{}, err
		}
		rows, err := r.store.ExecuteQuery(ctx, stmt, map[string]any{"tenantId": r.cfg.TenantID})
		if err != nil {
			return GraphStats{}, fmt.Errorf("retrieval: count %s: %w", kind, err)
		}
		if len(rows) > 0 {
			*counts[kind] = rows[0].Int("count")
		}
	}

	rows, err := r.store.ExecuteQuery(ctx, graph.EdgeCountQuery(r.cfg.Dialect), nil)
	if err != nil {
		return GraphStats{}, fmt.Errorf("retrieval: count edges: %w", err)
	}
	if len(rows) > 0 {
		stats.Edges = rows[0].Int("count")
	}
	return stats, nil
}

// RecentCommits returns the newest commits touching a file, newest first.
func (r *Retriever) RecentCommits(ctx context.Context, filePath string, limit int) ([]model.Commit, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := r.store.ExecuteQuery(ctx, graph.CommitsForFileQuery(r.cfg.Dialect), map[string]any{
		"filePath": filePath,
		"limit":    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: commits for %s: %w", filePath, err)
	}
	commits := make([]model.Commit, 0, len(rows))
	for _, row := range rows {
		c := model.Commit{
			SHA:            row.Str("sha"),
			MessageSubject: row.Str("message"),
			AuthorName:     row.Str("author"),
		}
		if ts := row.Int("timestamp"); ts > 0 {
			c.CommittedAt = time.Unix(int64(ts), 0).UTC()
		}
		commits = append(commits, c)
	}
	return commits, nil
}

// attachRelationships fetches each result's one-hop neighborhood. Failures
// degrade to results without relationships.
func (r *Retriever) attachRelationships(ctx context.Context, results []model.RetrievalResult) {
	stmt, err := graph.ExpansionQuery(r.cfg.Dialect, model.TraversalEdgeTypes)
	if err != nil {
		r.log.Warn("expansion query build failed", "error", err)
		return
	}
	for i := range results {
		rows, err := r.store.ExecuteQuery(ctx, stmt, map[string]any{
			"qualifiedName": results[i].QualifiedName,
			"limit":         r.cfg.MaxRelationships,
			"tenantId":      r.cfg.TenantID,
		})
		if err != nil {
			r.log.Warn("relationship expansion failed",
				"qualified_name", results[i].QualifiedName, "error", err)
			continue
		}
		rels := make([]model.Relationship, 0, len(rows))
		for _, row := range rows {
			rels = append(rels, model.Relationship{
				QualifiedName: row.Str("qualifiedName"),
				EdgeType:      model.EdgeType(row.Str("edgeType")),
			})
		}
		results[i].Relationships = rels
	}
}

// attachSnippets renders the code snippet for each result.
func (r *Retriever) attachSnippets(results []model.RetrievalResult) {
	for i := range results {
		results[i].Code = r.snippets.Render(results[i].FilePath, results[i].LineStart, results[i].LineEnd)
	}
}

// rowsToResults maps graph rows to results using the standard projection
// column names.
func rowsToResults(rows []graph.Row) []model.RetrievalResult {
	out := make([]model.RetrievalResult, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.RetrievalResult{
			Kind:          model.EntityKind(row.Str("kind")),
			QualifiedName: row.Str("qualifiedName"),
			Name:          row.Str("name"),
			FilePath:      row.Str("filePath"),
			LineStart:     row.Int("lineStart"),
			LineEnd:       row.Int("lineEnd"),
			Docstring:     row.Str("docstring"),
			Score:         row.Float("score"),
		})
	}
	return out
}

// dedupeByName keeps the first (best-ranked) occurrence of each entity.
// An entity can surface under multiple kind queries.
func dedupeByName(results []model.RetrievalResult) []model.RetrievalResult {
	seen := make(map[string]bool, len(results))
	out := results[:0]
	for _, r := range results {
		if seen[r.QualifiedName] {
			continue
		}
		seen[r.QualifiedName] = true
		out = append(out, r)
	}
	return out
}

func sortByScore(results []model.RetrievalResult, ascending bool) {
	sort.SliceStable(results, func(i, j int) bool {
		if ascending {
			return results[i].Score < results[j].Score
		}
		return results[i].Score > results[j].Score
	})
}
