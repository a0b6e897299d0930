package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerificationResult_TestPassRate_GuardsZeroTotal(t *testing.T) {
	v := VerificationResult{TestsPassed: 0, TestsTotal: 0}
	assert.Equal(t, 0.0, v.TestPassRate(), "zero tests must not divide by zero")

	v = VerificationResult{TestsPassed: 3, TestsTotal: 4}
	assert.InDelta(t, 0.75, v.TestPassRate(), 1e-9)
}

func TestVerificationResult_ValidationScore_MeanOfPresentChecks(t *testing.T) {
	tr := true
	fa := false

	// Only syntax present and passing: 1/1.
	v := VerificationResult{SyntaxValid: true}
	assert.InDelta(t, 1.0, v.ValidationScore(), 1e-9)

	// Syntax pass, import fail: (1+0)/2.
	v = VerificationResult{SyntaxValid: true, ImportValid: &fa}
	assert.InDelta(t, 0.5, v.ValidationScore(), 1e-9)

	// All three present, two pass: (1+1+0)/3.
	v = VerificationResult{SyntaxValid: true, ImportValid: &tr, TypeValid: &fa}
	assert.InDelta(t, 2.0/3.0, v.ValidationScore(), 1e-9)
}

func TestFixProposal_TotalLinesChanged_TakesLargerSide(t *testing.T) {
	p := FixProposal{Changes: []Change{
		{OriginalCode: "a\nb\nc", FixedCode: "a"},    // 3 vs 1 -> 3
		{OriginalCode: "x", FixedCode: "x\ny\nz\nw"}, // 1 vs 4 -> 4
		{OriginalCode: "", FixedCode: "one\ntwo"},    // 0 vs 2 -> 2
	}}
	assert.Equal(t, 9, p.TotalLinesChanged())
}

func TestEvidence_Strength_SaturatesAtSixItems(t *testing.T) {
	e := Evidence{
		DocumentationRefs: []string{"a", "b", "c"},
		BestPractices:     []string{"d", "e"},
		SimilarPatterns:   []string{"f", "g"}, // 7 items total
	}
	assert.Equal(t, 1.0, e.Strength(), "seven supporting items saturate at 1.0")

	e = Evidence{DocumentationRefs: []string{"a"}, BestPractices: []string{"b"}, SimilarPatterns: []string{"c"}}
	assert.InDelta(t, 0.5, e.Strength(), 1e-9, "three of six items is half strength")
}

func TestConfidence_StepDown_LowStaysLow(t *testing.T) {
	assert.Equal(t, ConfidenceMedium, ConfidenceHigh.StepDown())
	assert.Equal(t, ConfidenceLow, ConfidenceMedium.StepDown())
	assert.Equal(t, ConfidenceLow, ConfidenceLow.StepDown())
}

func TestFixDecision_ModifiedCountsAsApproval(t *testing.T) {
	assert.True(t, FixDecision{Decision: DecisionApproved}.CountsAsApproval())
	assert.True(t, FixDecision{Decision: DecisionModified}.CountsAsApproval())
	assert.False(t, FixDecision{Decision: DecisionRejected}.CountsAsApproval())
}
