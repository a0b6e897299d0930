package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Falkor executes Cypher against FalkorDB over the Redis protocol.
// Parameters are serialized into a CYPHER prefix because the GRAPH.QUERY
// command has no separate parameter payload.
type Falkor struct {
	client *redis.Client
	graph  string
	log    *slog.Logger
	health healthCache
}

// FalkorConfig holds connection settings for a FalkorDB instance.
type FalkorConfig struct {
	Addr     string
	Graph    string
	User     string
	Password string
}

// NewFalkor creates a FalkorDB-backed store. The connection is lazy;
// use Healthy to probe reachability.
func NewFalkor(cfg FalkorConfig, log *slog.Logger) *Falkor {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.User,
		Password: cfg.Password,
	})
	return &Falkor{client: client, graph: cfg.Graph, log: log}
}

// ExecuteQuery runs a Cypher statement via GRAPH.QUERY and parses the
// non-compact reply into rows.
func (f *Falkor) ExecuteQuery(ctx context.Context, statement string, params map[string]any) ([]Row, error) {
	q := statement
	if len(params) > 0 {
		prefix, err := serializeParams(params)
		if err != nil {
			return nil, err
		}
		q = prefix + " " + statement
	}

	raw, err := f.client.Do(ctx, "GRAPH.QUERY", f.graph, q).Result()
	if err != nil {
		return nil, fmt.Errorf("graph: falkordb query: %w", err)
	}
	rows, err := parseFalkorReply(raw)
	if err != nil {
		return nil, fmt.Errorf("graph: falkordb reply: %w", err)
	}
	return rows, nil
}

// Healthy pings the Redis connection, cached for a few seconds.
func (f *Falkor) Healthy(ctx context.Context) error {
	return f.health.check(ctx, func(ctx context.Context) error {
		if err := f.client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("graph: falkordb ping: %w", err)
		}
		return nil
	})
}

func (f *Falkor) Close(ctx context.Context) error {
	return f.client.Close()
}

// serializeParams renders named parameters as a "CYPHER k=v ..." prefix.
// Keys are sorted so the query text is deterministic for a given input.
func serializeParams(params map[string]any) (string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("CYPHER")
	for _, k := range keys {
		v, err := serializeValue(params[k])
		if err != nil {
			return "", fmt.Errorf("graph: parameter %q: %w", k, err)
		}
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(v)
	}
	return b.String(), nil
}

func serializeValue(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return quoteCypherString(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case []float32:
		parts := make([]string, len(val))
		for i, f := range val {
			parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	case []string:
		parts := make([]string, len(val))
		for i, s := range val {
			parts[i] = quoteCypherString(s)
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	default:
		return "", fmt.Errorf("unsupported parameter type %T", v)
	}
}

func quoteCypherString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// parseFalkorReply flattens a GRAPH.QUERY reply into rows. The reply is
// [header, rows, stats] for reading queries and [stats] for writes.
func parseFalkorReply(raw any) ([]Row, error) {
	top, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected reply type %T", raw)
	}
	if len(top) < 3 {
		// Write-only statement: stats, no result set.
		return nil, nil
	}

	header, ok := top[0].([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected header type %T", top[0])
	}
	cols := make([]string, len(header))
	for i, h := range header {
		s, ok := h.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected column name type %T", h)
		}
		cols[i] = s
	}

	data, ok := top[1].([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result set type %T", top[1])
	}
	rows := make([]Row, 0, len(data))
	for _, rec := range data {
		cells, ok := rec.([]any)
		if !ok {
			return nil, fmt.Errorf("unexpected row type %T", rec)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if i < len(cells) {
				row[col] = cells[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
