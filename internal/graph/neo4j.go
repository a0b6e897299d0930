package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4j executes Cypher against a Neo4j server over Bolt.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
	health   healthCache
}

// Neo4jConfig holds connection settings for a Neo4j instance.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
}

// NewNeo4j creates a Neo4j-backed store.
func NewNeo4j(cfg Neo4jConfig) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: create neo4j driver: %w", err)
	}
	return &Neo4j{driver: driver, database: cfg.Database}, nil
}

func (n *Neo4j) ExecuteQuery(ctx context.Context, statement string, params map[string]any) ([]Row, error) {
	res, err := neo4j.ExecuteQuery(ctx, n.driver, statement, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database),
	)
	if err != nil {
		return nil, fmt.Errorf("graph: neo4j query: %w", err)
	}
	rows := make([]Row, 0, len(res.Records))
	for _, rec := range res.Records {
		rows = append(rows, Row(rec.AsMap()))
	}
	return rows, nil
}

// Healthy verifies driver connectivity, cached for a few seconds.
func (n *Neo4j) Healthy(ctx context.Context) error {
	return n.health.check(ctx, func(ctx context.Context) error {
		if err := n.driver.VerifyConnectivity(ctx); err != nil {
			return fmt.Errorf("graph: neo4j connectivity: %w", err)
		}
		return nil
	})
}

func (n *Neo4j) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}
