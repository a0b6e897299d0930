package retrieval

import (
	"sort"

	"github.com/repotoire/repotoire/internal/model"
)

// rrfK dampens the weight gap between adjacent ranks. 60 is the standard
// constant from the original reciprocal rank fusion paper.
const rrfK = 60

// FuseRRF merges ranked lists with reciprocal rank fusion: each entity
// scores sum(1/(k+rank)) over the lists that contain it, with 1-based
// ranks. Input lists must already be best-first. The fused list is sorted
// by score descending, tie-broken by qualified name for determinism.
func FuseRRF(lists ...[]model.RetrievalResult) []model.RetrievalResult {
	scores := make(map[string]float64)
	byName := make(map[string]model.RetrievalResult)

	for _, results := range lists {
		for i, r := range results {
			rank := i + 1
			scores[r.QualifiedName] += 1.0 / float64(rrfK+rank)
			if _, seen := byName[r.QualifiedName]; !seen {
				byName[r.QualifiedName] = r
			}
		}
	}

	fused := make([]model.RetrievalResult, 0, len(byName))
	for name, r := range byName {
		r.Score = scores[name]
		fused = append(fused, r)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].QualifiedName < fused[j].QualifiedName
	})
	return fused
}

// FuseLinear merges a dense and a sparse list by weighted sum of min-max
// normalized scores: alpha*dense + (1-alpha)*sparse. An entity missing from
// one list contributes zero for that component.
func FuseLinear(dense, sparse []model.RetrievalResult, alpha float64) []model.RetrievalResult {
	denseNorm := normalizeScores(dense)
	sparseNorm := normalizeScores(sparse)

	byName := make(map[string]model.RetrievalResult)
	scores := make(map[string]float64)

	for i, r := range dense {
		scores[r.QualifiedName] += alpha * denseNorm[i]
		if _, seen := byName[r.QualifiedName]; !seen {
			byName[r.QualifiedName] = r
		}
	}
	for i, r := range sparse {
		scores[r.QualifiedName] += (1 - alpha) * sparseNorm[i]
		if _, seen := byName[r.QualifiedName]; !seen {
			byName[r.QualifiedName] = r
		}
	}

	fused := make([]model.RetrievalResult, 0, len(byName))
	for name, r := range byName {
		r.Score = scores[name]
		fused = append(fused, r)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].QualifiedName < fused[j].QualifiedName
	})
	return fused
}

// normalizeScores min-max scales a list's scores to [0, 1]. When all
// scores are equal every entry gets 1.0, preserving list membership as
// the only signal.
func normalizeScores(results []model.RetrievalResult) []float64 {
	out := make([]float64, len(results))
	if len(results) == 0 {
		return out
	}
	lo, hi := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < lo {
			lo = r.Score
		}
		if r.Score > hi {
			hi = r.Score
		}
	}
	if hi == lo {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, r := range results {
		out[i] = (r.Score - lo) / (hi - lo)
	}
	return out
}
