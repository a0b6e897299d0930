package autofix

import (
	"encoding/json"
	"strings"

	"github.com/repotoire/repotoire/internal/model"
)

// fixPayload is the JSON shape the model is asked to produce.
type fixPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Rationale   string `json:"rationale"`
	Confidence  string `json:"confidence"`
	Evidence    struct {
		DocumentationRefs []string `json:"documentation_refs"`
		BestPractices     []string `json:"best_practices"`
		SimilarPatterns   []string `json:"similar_patterns"`
	} `json:"evidence"`
	Changes []struct {
		FilePath     string `json:"file_path"`
		OriginalCode string `json:"original_code"`
		FixedCode    string `json:"fixed_code"`
	} `json:"changes"`
}

// parseProposal extracts a proposal from model output, tolerating wrapping
// code fences and surrounding prose. ok is false when no usable JSON was
// found; the caller gets a fallback proposal with no changes.
func parseProposal(raw string) (model.FixProposal, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return fallbackProposal(raw), false
	}

	var payload fixPayload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return fallbackProposal(raw), false
	}

	p := model.FixProposal{
		Title:       payload.Title,
		Description: payload.Description,
		Rationale:   payload.Rationale,
		Confidence:  parseConfidence(payload.Confidence),
		Evidence: model.Evidence{
			DocumentationRefs: payload.Evidence.DocumentationRefs,
			BestPractices:     payload.Evidence.BestPractices,
			SimilarPatterns:   payload.Evidence.SimilarPatterns,
		},
		SyntaxValid: model.SyntaxUnchecked,
	}
	for _, c := range payload.Changes {
		p.Changes = append(p.Changes, model.Change{
			FilePath:     c.FilePath,
			OriginalCode: c.OriginalCode,
			FixedCode:    c.FixedCode,
		})
	}
	if p.Title == "" {
		p.Title = "Auto-generated fix"
	}
	return p, len(p.Changes) > 0
}

// fallbackProposal is emitted when the model output was not parseable. It
// carries no changes and can never be verified.
func fallbackProposal(raw string) model.FixProposal {
	return model.FixProposal{
		Title:       "Auto-generated fix",
		Description: truncate(strings.TrimSpace(raw), 500),
		Confidence:  model.ConfidenceLow,
		SyntaxValid: model.SyntaxUnchecked,
	}
}

func parseConfidence(s string) model.Confidence {
	switch model.Confidence(strings.ToLower(s)) {
	case model.ConfidenceHigh:
		return model.ConfidenceHigh
	case model.ConfidenceMedium:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
