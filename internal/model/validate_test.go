package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateQuery(t *testing.T) {
	assert.True(t, ValidateQuery("", 5).HasErrors(), "empty query rejected")
	assert.True(t, ValidateQuery("ab", 5).HasErrors(), "two characters is too short")
	assert.True(t, ValidateQuery("how does auth work", -1).HasErrors(), "negative topK rejected")
	assert.False(t, ValidateQuery("how does auth work", 5).HasErrors())

	// Oversized topK is a warning, not an error.
	issues := ValidateQuery("how does auth work", 5000)
	assert.False(t, issues.HasErrors())
	assert.Len(t, issues, 1)

	long := strings.Repeat("q", maxQueryLen+1)
	assert.True(t, ValidateQuery(long, 5).HasErrors())
}

func TestValidateKinds(t *testing.T) {
	assert.False(t, ValidateKinds([]EntityKind{KindFunction, KindClass}).HasErrors())
	assert.True(t, ValidateKinds([]EntityKind{"Module"}).HasErrors())
}

func TestValidateTraversal(t *testing.T) {
	ok := ValidateTraversal("pkg.mod::fn:1", []EdgeType{EdgeCalls, EdgeUses}, 3)
	assert.False(t, ok.HasErrors())

	assert.True(t, ValidateTraversal("", []EdgeType{EdgeCalls}, 3).HasErrors())
	assert.True(t, ValidateTraversal("x", nil, 3).HasErrors())
	assert.True(t, ValidateTraversal("x", []EdgeType{"KNOWS"}, 3).HasErrors())
	assert.True(t, ValidateTraversal("x", []EdgeType{EdgeCalls}, 0).HasErrors())
	assert.True(t, ValidateTraversal("x", []EdgeType{EdgeCalls}, 11).HasErrors())
}

func TestValidateDecision(t *testing.T) {
	d := FixDecision{FixID: "f1", Decision: DecisionApproved, FixType: FixSecurity}
	assert.False(t, ValidateDecision(d).HasErrors())

	d.FixID = ""
	assert.True(t, ValidateDecision(d).HasErrors())

	// Rejection without a reason warns but does not fail.
	d = FixDecision{FixID: "f1", Decision: DecisionRejected, FixType: FixSecurity}
	issues := ValidateDecision(d)
	assert.False(t, issues.HasErrors())
	assert.Len(t, issues, 1)
}
