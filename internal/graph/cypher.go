package graph

import (
	"fmt"
	"strings"

	"github.com/repotoire/repotoire/internal/model"
)

// nodeID returns the dialect's expression for a node's internal identifier.
func nodeID(d Dialect, alias string) string {
	if d == DialectNeo4j {
		return fmt.Sprintf("elementId(%s)", alias)
	}
	return fmt.Sprintf("id(%s)", alias)
}

// tenantFilter isolates rows to $tenantId; an empty $tenantId matches all.
func tenantFilter(alias string) string {
	return fmt.Sprintf("($tenantId = '' OR %s.tenantId = $tenantId)", alias)
}

// nodeProjection lists the standard RETURN columns for a code entity.
func nodeProjection(d Dialect, alias string) string {
	return fmt.Sprintf(
		"%s AS nodeId, %[2]s.qualifiedName AS qualifiedName, %[2]s.name AS name, "+
			"%[2]s.filePath AS filePath, %[2]s.lineStart AS lineStart, %[2]s.lineEnd AS lineEnd, "+
			"%[2]s.docstring AS docstring, labels(%[2]s)[0] AS kind",
		nodeID(d, alias), alias,
	)
}

// VectorIndexName is the Neo4j vector index naming convention per label.
func VectorIndexName(kind model.EntityKind) string {
	return strings.ToLower(string(kind)) + "_embeddings"
}

// FulltextIndexName is the Neo4j fulltext index naming convention per label.
func FulltextIndexName(kind model.EntityKind) string {
	return strings.ToLower(string(kind)) + "_fulltext"
}

// VectorSearchQuery builds the KNN query for one entity label.
// Parameters: $topK, $embedding, $tenantId. Rows come back best-first in
// the backend's call order, so no ORDER BY is applied.
func VectorSearchQuery(d Dialect, kind model.EntityKind) (string, error) {
	if !model.ValidEntityKind(kind) {
		return "", fmt.Errorf("graph: unknown entity kind %q", kind)
	}
	var call string
	if d == DialectNeo4j {
		call = fmt.Sprintf("CALL db.index.vector.queryNodes('%s', $topK, $embedding)", VectorIndexName(kind))
	} else {
		call = fmt.Sprintf("CALL db.idx.vector.queryNodes('%s', 'embedding', $topK, vecf32($embedding))", kind)
	}
	q := fmt.Sprintf(`%s YIELD node, score
WHERE %s
RETURN %s, score`, call, tenantFilter("node"), nodeProjection(d, "node"))
	return q, nil
}

// FulltextSearchQuery builds the BM25 keyword query for one entity label.
// Parameters: $query (already Lucene-escaped), $limit, $tenantId.
func FulltextSearchQuery(d Dialect, kind model.EntityKind) (string, error) {
	if !model.ValidEntityKind(kind) {
		return "", fmt.Errorf("graph: unknown entity kind %q", kind)
	}
	var call string
	if d == DialectNeo4j {
		call = fmt.Sprintf("CALL db.index.fulltext.queryNodes('%s', $query)", FulltextIndexName(kind))
	} else {
		call = fmt.Sprintf("CALL db.idx.fulltext.queryNodes('%s', $query)", kind)
	}
	q := fmt.Sprintf(`%s YIELD node, score
WHERE %s
RETURN %s, score
ORDER BY score DESC
LIMIT $limit`, call, tenantFilter("node"), nodeProjection(d, "node"))
	return q, nil
}

// ExpansionQuery builds the one-hop neighborhood query around an entity.
// Parameters: $qualifiedName, $limit, $tenantId.
func ExpansionQuery(d Dialect, edgeTypes []model.EdgeType) (string, error) {
	rel, err := relPattern(edgeTypes)
	if err != nil {
		return "", err
	}
	q := fmt.Sprintf(`MATCH (node {qualifiedName: $qualifiedName})-[r:%s]-(neighbor)
WHERE %s
RETURN type(r) AS edgeType, neighbor.qualifiedName AS qualifiedName
LIMIT $limit`, rel, tenantFilter("neighbor"))
	return q, nil
}

// TraversalQuery builds a bounded multi-hop walk from a start entity.
// Hop bounds cannot be parameterized in Cypher, so maxHops is inlined;
// it must already be validated to [1, 10].
// Parameters: $start, $limit, $tenantId.
func TraversalQuery(d Dialect, edgeTypes []model.EdgeType, maxHops int) (string, error) {
	rel, err := relPattern(edgeTypes)
	if err != nil {
		return "", err
	}
	if maxHops < 1 || maxHops > 10 {
		return "", fmt.Errorf("graph: maxHops %d outside [1, 10]", maxHops)
	}
	// Nodes reachable by several paths keep their shortest hop distance,
	// scored 1/(distance+1) so closer entities rank first.
	q := fmt.Sprintf(`MATCH path = (start {qualifiedName: $start})-[:%s*1..%d]->(node)
WHERE %s
WITH node, min(length(path)) AS distance
RETURN %s, 1.0 / (distance + 1) AS score
ORDER BY score DESC
LIMIT $limit`, rel, maxHops, tenantFilter("node"), nodeProjection(d, "node"))
	return q, nil
}

// CommitsForFileQuery builds the recent-commit lookup for a file.
// Parameters: $filePath, $limit.
func CommitsForFileQuery(d Dialect) string {
	return `MATCH (c:Commit)-[:MODIFIED]->(f:File {filePath: $filePath})
RETURN c.sha AS sha, c.message AS message, c.author AS author, c.timestamp AS timestamp
ORDER BY c.timestamp DESC
LIMIT $limit`
}

// NodeCountQuery counts entities of one label. Parameters: $tenantId.
func NodeCountQuery(d Dialect, kind model.EntityKind) (string, error) {
	if !model.ValidEntityKind(kind) {
		return "", fmt.Errorf("graph: unknown entity kind %q", kind)
	}
	q := fmt.Sprintf(`MATCH (node:%s)
WHERE %s
RETURN count(node) AS count`, kind, tenantFilter("node"))
	return q, nil
}

// EdgeCountQuery counts all relationships in the graph.
func EdgeCountQuery(d Dialect) string {
	return `MATCH ()-[r]->() RETURN count(r) AS count`
}

// relPattern joins validated edge types into a Cypher relationship
// alternation. Validation doubles as injection protection since edge
// types are spliced into query text.
func relPattern(edgeTypes []model.EdgeType) (string, error) {
	if len(edgeTypes) == 0 {
		return "", fmt.Errorf("graph: no edge types given")
	}
	parts := make([]string, 0, len(edgeTypes))
	for _, et := range edgeTypes {
		if !model.ValidEdgeType(et) {
			return "", fmt.Errorf("graph: unknown edge type %q", et)
		}
		parts = append(parts, string(et))
	}
	return strings.Join(parts, "|"), nil
}
