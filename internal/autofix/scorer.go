package autofix

import (
	"sort"
	"strings"

	"github.com/repotoire/repotoire/internal/model"
)

// Weights are the scoring dimension weights. They sum to 1.0.
type Weights struct {
	TestPassRate float64
	Validation   float64
	Evidence     float64
	Quality      float64
	Confidence   float64
	ChangeSize   float64
}

// DefaultWeights favor verified behavior (tests, validation) over the
// model's self-assessment.
var DefaultWeights = Weights{
	TestPassRate: 0.35,
	Validation:   0.20,
	Evidence:     0.10,
	Quality:      0.10,
	Confidence:   0.15,
	ChangeSize:   0.10,
}

// Candidate pairs a proposal with its sandbox verification and, after
// ranking, its total score.
type Candidate struct {
	Proposal     model.FixProposal
	Verification model.VerificationResult
	Score        float64
}

// Scorer ranks verified candidates along six weighted dimensions.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer. Zero weights fall back to the defaults.
func NewScorer(w Weights) *Scorer {
	if w == (Weights{}) {
		w = DefaultWeights
	}
	return &Scorer{weights: w}
}

// Score computes the weighted total for one candidate.
func (s *Scorer) Score(c Candidate) float64 {
	w := s.weights
	lines := c.Proposal.TotalLinesChanged()

	changeSize := 1 - float64(lines)/50.0
	if changeSize < 0 {
		changeSize = 0
	}

	return w.TestPassRate*c.Verification.TestPassRate() +
		w.Validation*c.Verification.ValidationScore() +
		w.Evidence*c.Proposal.Evidence.Strength() +
		w.Quality*qualityScore(c.Proposal) +
		w.Confidence*c.Proposal.Confidence.Weight() +
		w.ChangeSize*changeSize
}

// Rank scores and sorts candidates best-first. Ties break on higher test
// pass rate, then smaller change, then fix ID for determinism.
func (s *Scorer) Rank(candidates []Candidate) []Candidate {
	for i := range candidates {
		candidates[i].Score = s.Score(candidates[i])
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ar, br := a.Verification.TestPassRate(), b.Verification.TestPassRate()
		if ar != br {
			return ar > br
		}
		al, bl := a.Proposal.TotalLinesChanged(), b.Proposal.TotalLinesChanged()
		if al != bl {
			return al < bl
		}
		return a.Proposal.ID < b.Proposal.ID
	})
	return candidates
}

// qualityScore is a deterministic heuristic over the proposal itself:
// readable rationale, accompanying test changes, and small diffs score
// higher.
func qualityScore(p model.FixProposal) float64 {
	score := 0.5
	if len(p.Rationale) >= 100 {
		score += 0.2
	}
	for _, c := range p.Changes {
		if strings.Contains(c.FilePath, "test") {
			score += 0.2
			break
		}
	}
	if p.TotalLinesChanged() <= 10 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}
