package model

import "time"

// FixType categorizes what a proposed fix does.
type FixType string

const (
	FixSecurity      FixType = "security"
	FixSimplify      FixType = "simplify"
	FixRefactor      FixType = "refactor"
	FixExtract       FixType = "extract"
	FixRemove        FixType = "remove"
	FixDocumentation FixType = "documentation"
	FixTypeHint      FixType = "type_hint"
)

// ValidFixType reports whether t is a known fix type.
func ValidFixType(t FixType) bool {
	switch t {
	case FixSecurity, FixSimplify, FixRefactor, FixExtract, FixRemove, FixDocumentation, FixTypeHint:
		return true
	}
	return false
}

// Confidence is the model's self-reported confidence in a fix, adjusted by
// the adaptive learning loop before a proposal is emitted.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Weight maps confidence to a scoring weight.
func (c Confidence) Weight() float64 {
	switch c {
	case ConfidenceHigh:
		return 1.0
	case ConfidenceMedium:
		return 0.7
	default:
		return 0.4
	}
}

// StepDown lowers confidence by one level. Low stays Low.
func (c Confidence) StepDown() Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// FixStatus is the lifecycle state of a proposal.
type FixStatus string

const (
	StatusPending  FixStatus = "pending"
	StatusApproved FixStatus = "approved"
	StatusRejected FixStatus = "rejected"
	StatusApplied  FixStatus = "applied"
	StatusFailed   FixStatus = "failed"
)

// SyntaxState is a tri-state syntax-check outcome.
type SyntaxState string

const (
	SyntaxValid     SyntaxState = "valid"
	SyntaxInvalid   SyntaxState = "invalid"
	SyntaxUnchecked SyntaxState = "unchecked"
)

// Change is one file edit inside a proposal. OriginalCode must match the
// current file content; FixedCode replaces it.
type Change struct {
	FilePath     string `json:"file_path"`
	OriginalCode string `json:"original_code"`
	FixedCode    string `json:"fixed_code"`
	StartLine    int    `json:"start_line"`
	EndLine      int    `json:"end_line"`
}

// Evidence backs a proposal: documentation references, best-practice notes,
// similar patterns found in the repository, and the retrieved snippets that
// seeded the prompt.
type Evidence struct {
	DocumentationRefs []string `json:"documentation_refs,omitempty"`
	BestPractices     []string `json:"best_practices,omitempty"`
	SimilarPatterns   []string `json:"similar_patterns,omitempty"`
	RAGSnippets       []string `json:"rag_snippets,omitempty"`
}

// Strength scores evidence density into [0, 1]. Six supporting items is
// treated as full strength.
func (e Evidence) Strength() float64 {
	n := len(e.DocumentationRefs) + len(e.BestPractices) + len(e.SimilarPatterns)
	s := float64(n) / 6.0
	if s > 1 {
		s = 1
	}
	return s
}

// FixProposal is a validated, scored candidate fix emitted by the best-of-N
// pipeline. It is value-typed: external collaborators own its persistence.
type FixProposal struct {
	ID          string         `json:"id"`
	Finding     string         `json:"finding"`
	FixType     FixType        `json:"fix_type"`
	Confidence  Confidence     `json:"confidence"`
	Changes     []Change       `json:"changes"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Rationale   string         `json:"rationale"`
	Evidence    Evidence       `json:"evidence"`
	SyntaxValid SyntaxState    `json:"syntax_valid"`
	Status      FixStatus      `json:"status"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	AppliedAt   *time.Time     `json:"applied_at,omitempty"`
}

// TotalLinesChanged sums, per change, the larger of the original and fixed
// line counts. Used by the change-size scoring dimension.
func (p FixProposal) TotalLinesChanged() int {
	total := 0
	for _, c := range p.Changes {
		o := countLines(c.OriginalCode)
		f := countLines(c.FixedCode)
		if f > o {
			total += f
		} else {
			total += o
		}
	}
	return total
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := 1
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}

// VerificationResult is the sandbox's report for one candidate.
// ImportValid and TypeValid are nil when the check did not run.
type VerificationResult struct {
	FixID       string `json:"fix_id"`
	TestsPassed int    `json:"tests_passed"`
	TestsFailed int    `json:"tests_failed"`
	TestsTotal  int    `json:"tests_total"`
	SyntaxValid bool   `json:"syntax_valid"`
	ImportValid *bool  `json:"import_valid,omitempty"`
	TypeValid   *bool  `json:"type_valid,omitempty"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

// TestPassRate is testsPassed over testsTotal, guarding the zero-test case.
func (v VerificationResult) TestPassRate() float64 {
	total := v.TestsTotal
	if total < 1 {
		total = 1
	}
	return float64(v.TestsPassed) / float64(total)
}

// ValidationScore is the mean of the present boolean checks, counting false
// as zero. SyntaxValid is always present; ImportValid and TypeValid only
// when their checks ran.
func (v VerificationResult) ValidationScore() float64 {
	present := 1
	passed := 0
	if v.SyntaxValid {
		passed++
	}
	if v.ImportValid != nil {
		present++
		if *v.ImportValid {
			passed++
		}
	}
	if v.TypeValid != nil {
		present++
		if *v.TypeValid {
			passed++
		}
	}
	return float64(passed) / float64(present)
}
