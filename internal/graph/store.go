// Package graph provides access to the code knowledge graph over two
// backends: FalkorDB (Redis GRAPH.QUERY protocol) and Neo4j (Bolt).
// Query text is built per dialect in cypher.go; both adapters return
// rows as flat column-name maps so callers never see driver types.
package graph

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Dialect selects the Cypher variant and procedure names used by a Store.
type Dialect string

const (
	DialectFalkorDB Dialect = "falkordb"
	DialectNeo4j    Dialect = "neo4j"
)

// Row is a single result row keyed by the RETURN column aliases.
type Row map[string]any

// Store executes Cypher statements against a code knowledge graph.
type Store interface {
	// ExecuteQuery runs a statement with named parameters and returns all
	// result rows. Statements with no RETURN clause yield an empty slice.
	ExecuteQuery(ctx context.Context, statement string, params map[string]any) ([]Row, error)

	// Healthy reports whether the backend is reachable. Results are cached
	// briefly so hot paths can probe without hammering the backend.
	Healthy(ctx context.Context) error

	Close(ctx context.Context) error
}

// Str returns the named column as a string, or "" when absent.
func (r Row) Str(key string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

// Int returns the named column as an int, coercing the integer and
// string forms the wire protocols produce.
func (r Row) Int(key string) int {
	switch v := r[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

// Float returns the named column as a float64. FalkorDB's non-compact
// replies encode doubles as strings, so those are parsed here.
func (r Row) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}

// healthTTL is how long a health probe result stays fresh.
const healthTTL = 5 * time.Second

// healthCache deduplicates concurrent health probes and caches the
// outcome for healthTTL.
type healthCache struct {
	sf singleflight.Group

	mu      sync.Mutex
	checked time.Time
	err     error
}

func (h *healthCache) check(ctx context.Context, probe func(context.Context) error) error {
	h.mu.Lock()
	if !h.checked.IsZero() && time.Since(h.checked) < healthTTL {
		err := h.err
		h.mu.Unlock()
		return err
	}
	h.mu.Unlock()

	_, err, _ := h.sf.Do("health", func() (any, error) {
		err := probe(ctx)
		h.mu.Lock()
		h.checked = time.Now()
		h.err = err
		h.mu.Unlock()
		return nil, err
	})
	return err
}
