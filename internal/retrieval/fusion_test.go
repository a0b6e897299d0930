package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repotoire/repotoire/internal/model"
)

func ranked(names ...string) []model.RetrievalResult {
	out := make([]model.RetrievalResult, len(names))
	for i, n := range names {
		// Descending placeholder scores; RRF only uses positions.
		out[i] = model.RetrievalResult{QualifiedName: n, Score: 1.0 - float64(i)*0.1}
	}
	return out
}

func TestFuseRRF_CombinesRanks(t *testing.T) {
	dense := ranked("A", "B")
	sparse := ranked("B", "C")

	fused := FuseRRF(dense, sparse)
	require.Len(t, fused, 3)

	// B appears in both lists: 1/(60+2) + 1/(60+1).
	// A only in dense at rank 1: 1/61. C only in sparse at rank 2: 1/62.
	assert.Equal(t, "B", fused[0].QualifiedName)
	assert.InDelta(t, 1.0/62+1.0/61, fused[0].Score, 1e-9)
	assert.Equal(t, "A", fused[1].QualifiedName)
	assert.InDelta(t, 1.0/61, fused[1].Score, 1e-9)
	assert.Equal(t, "C", fused[2].QualifiedName)
	assert.InDelta(t, 1.0/62, fused[2].Score, 1e-9)
}

func TestFuseRRF_EmptyLists(t *testing.T) {
	assert.Empty(t, FuseRRF(nil, nil))

	fused := FuseRRF(ranked("A"), nil)
	require.Len(t, fused, 1)
	assert.Equal(t, "A", fused[0].QualifiedName)
}

func TestFuseRRF_DeterministicTieBreak(t *testing.T) {
	// Two entities at the same rank in disjoint lists tie on score; order
	// falls back to qualified name.
	fused := FuseRRF(ranked("Z"), ranked("A"))
	require.Len(t, fused, 2)
	assert.Equal(t, "A", fused[0].QualifiedName)
	assert.Equal(t, "Z", fused[1].QualifiedName)
}

func TestFuseLinear_WeightsBranches(t *testing.T) {
	dense := []model.RetrievalResult{
		{QualifiedName: "A", Score: 0.9},
		{QualifiedName: "B", Score: 0.1},
	}
	sparse := []model.RetrievalResult{
		{QualifiedName: "B", Score: 10},
		{QualifiedName: "C", Score: 2},
	}

	fused := FuseLinear(dense, sparse, 0.7)
	require.Len(t, fused, 3)

	// Normalized: dense A=1, B=0; sparse B=1, C=0.
	// A = 0.7*1 = 0.7; B = 0.7*0 + 0.3*1 = 0.3; C = 0.3*0 = 0.
	assert.Equal(t, "A", fused[0].QualifiedName)
	assert.InDelta(t, 0.7, fused[0].Score, 1e-9)
	assert.Equal(t, "B", fused[1].QualifiedName)
	assert.InDelta(t, 0.3, fused[1].Score, 1e-9)
	assert.Equal(t, "C", fused[2].QualifiedName)
	assert.InDelta(t, 0.0, fused[2].Score, 1e-9)
}

func TestNormalizeScores_EqualScoresAllOne(t *testing.T) {
	in := []model.RetrievalResult{{Score: 5}, {Score: 5}}
	norm := normalizeScores(in)
	assert.Equal(t, []float64{1, 1}, norm)
}
