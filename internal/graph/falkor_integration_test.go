package graph

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/repotoire/repotoire/internal/model"
)

// TestFalkorIntegration exercises the full GRAPH.QUERY round trip against a
// real FalkorDB container: write nodes and edges, then read them back
// through the same query builders the retriever uses.
func TestFalkorIntegration(t *testing.T) {
	if os.Getenv("REPOTOIRE_INTEGRATION") == "" {
		t.Skip("set REPOTOIRE_INTEGRATION=1 to run container-backed tests")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "falkordb/falkordb:latest",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForListeningPort("6379/tcp").
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store := NewFalkor(FalkorConfig{Addr: host + ":" + port.Port(), Graph: "itest"}, log)
	t.Cleanup(func() { _ = store.Close(ctx) })

	require.NoError(t, store.Healthy(ctx))

	// Seed two functions and a CALLS edge between them.
	_, err = store.ExecuteQuery(ctx, `CREATE
		(a:Function {qualifiedName: $a, name: 'login', filePath: 'auth.py', lineStart: 10, lineEnd: 30, docstring: 'Log a user in.', tenantId: ''}),
		(b:Function {qualifiedName: $b, name: 'hash_password', filePath: 'auth.py', lineStart: 40, lineEnd: 55, docstring: 'Hash a password.', tenantId: ''})`,
		map[string]any{"a": "auth::login:10", "b": "auth::hash_password:40"})
	require.NoError(t, err)

	_, err = store.ExecuteQuery(ctx,
		`MATCH (a:Function {qualifiedName: $a}), (b:Function {qualifiedName: $b}) CREATE (a)-[:CALLS]->(b)`,
		map[string]any{"a": "auth::login:10", "b": "auth::hash_password:40"})
	require.NoError(t, err)

	// Read a node back.
	rows, err := store.ExecuteQuery(ctx,
		`MATCH (node:Function {qualifiedName: $q}) RETURN node.name AS name, node.lineStart AS lineStart`,
		map[string]any{"q": "auth::login:10"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "login", rows[0].Str("name"))
	assert.Equal(t, 10, rows[0].Int("lineStart"))

	// Expand the neighborhood using the builder the retriever uses.
	q, err := ExpansionQuery(DialectFalkorDB, model.TraversalEdgeTypes)
	require.NoError(t, err)
	rows, err = store.ExecuteQuery(ctx, q, map[string]any{
		"qualifiedName": "auth::login:10",
		"limit":         20,
		"tenantId":      "",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "CALLS", rows[0].Str("edgeType"))
	assert.Equal(t, "auth::hash_password:40", rows[0].Str("qualifiedName"))
}
