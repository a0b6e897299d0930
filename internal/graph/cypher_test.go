package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repotoire/repotoire/internal/model"
)

func TestVectorSearchQuery_DialectForms(t *testing.T) {
	q, err := VectorSearchQuery(DialectFalkorDB, model.KindFunction)
	require.NoError(t, err)
	assert.Contains(t, q, "db.idx.vector.queryNodes('Function', 'embedding', $topK, vecf32($embedding))")
	assert.Contains(t, q, "id(node) AS nodeId")
	assert.Contains(t, q, "($tenantId = '' OR node.tenantId = $tenantId)")

	q, err = VectorSearchQuery(DialectNeo4j, model.KindClass)
	require.NoError(t, err)
	assert.Contains(t, q, "db.index.vector.queryNodes('class_embeddings', $topK, $embedding)")
	assert.Contains(t, q, "elementId(node) AS nodeId")

	_, err = VectorSearchQuery(DialectFalkorDB, "Module")
	assert.Error(t, err)
}

func TestFulltextSearchQuery_DialectForms(t *testing.T) {
	q, err := FulltextSearchQuery(DialectFalkorDB, model.KindFile)
	require.NoError(t, err)
	assert.Contains(t, q, "db.idx.fulltext.queryNodes('File', $query)")
	assert.Contains(t, q, "ORDER BY score DESC")

	q, err = FulltextSearchQuery(DialectNeo4j, model.KindFunction)
	require.NoError(t, err)
	assert.Contains(t, q, "db.index.fulltext.queryNodes('function_fulltext', $query)")
}

func TestExpansionQuery_JoinsEdgeTypes(t *testing.T) {
	q, err := ExpansionQuery(DialectFalkorDB, []model.EdgeType{model.EdgeCalls, model.EdgeUses})
	require.NoError(t, err)
	assert.Contains(t, q, "-[r:CALLS|USES]-")
	assert.Contains(t, q, "type(r) AS edgeType")

	_, err = ExpansionQuery(DialectFalkorDB, nil)
	assert.Error(t, err)

	_, err = ExpansionQuery(DialectFalkorDB, []model.EdgeType{"KNOWS"})
	assert.Error(t, err, "unknown edge types must be rejected before splicing into query text")
}

func TestTraversalQuery_BoundsHops(t *testing.T) {
	q, err := TraversalQuery(DialectNeo4j, []model.EdgeType{model.EdgeCalls}, 3)
	require.NoError(t, err)
	assert.Contains(t, q, "-[:CALLS*1..3]->")
	assert.Contains(t, q, "min(length(path)) AS distance")
	assert.Contains(t, q, "1.0 / (distance + 1) AS score")

	_, err = TraversalQuery(DialectNeo4j, []model.EdgeType{model.EdgeCalls}, 0)
	assert.Error(t, err)
	_, err = TraversalQuery(DialectNeo4j, []model.EdgeType{model.EdgeCalls}, 11)
	assert.Error(t, err)
}

func TestCommitsForFileQuery_OrderedNewestFirst(t *testing.T) {
	q := CommitsForFileQuery(DialectFalkorDB)
	assert.Contains(t, q, "(c:Commit)-[:MODIFIED]->(f:File {filePath: $filePath})")
	assert.Contains(t, q, "ORDER BY c.timestamp DESC")
}
