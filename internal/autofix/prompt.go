package autofix

import (
	"fmt"
	"strings"

	"github.com/repotoire/repotoire/internal/model"
)

// fixSystemPrompt pins the output contract. The historical-feedback block,
// when present, is appended so past rejections steer new candidates.
const fixSystemPrompt = `You are a senior engineer proposing a minimal, safe fix for a code finding.
Respond with a single JSON object and nothing else:
{
  "title": "one-line summary",
  "description": "what the fix does",
  "rationale": "why this is the right fix",
  "confidence": "high" | "medium" | "low",
  "evidence": {
    "documentation_refs": [...],
    "best_practices": [...],
    "similar_patterns": [...]
  },
  "changes": [
    {"file_path": "relative/path.py", "original_code": "exact code to replace", "fixed_code": "replacement"}
  ]
}
original_code must match the file content exactly. Keep changes as small as possible.`

// buildSystemPrompt assembles the system prompt, appending adaptive
// feedback when the learning loop has one.
func buildSystemPrompt(feedback string) string {
	if feedback == "" {
		return fixSystemPrompt
	}
	return fixSystemPrompt + "\n\n" + feedback
}

// buildUserPrompt renders the finding and its retrieved context.
func buildUserPrompt(finding Finding, snippets []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Finding (%s): %s\n", finding.FixType, finding.Description)
	if finding.FilePath != "" {
		fmt.Fprintf(&b, "File: %s\n", finding.FilePath)
	}
	if finding.Code != "" {
		fmt.Fprintf(&b, "\nAffected code:\n```\n%s\n```\n", finding.Code)
	}
	if len(snippets) > 0 {
		b.WriteString("\nRelated code from the repository:\n")
		for _, s := range snippets {
			fmt.Fprintf(&b, "```\n%s\n```\n", s)
		}
	}
	b.WriteString("\nPropose a fix as JSON.")
	return b.String()
}

// Finding describes one issue the pipeline should fix. Repository scopes
// decision-history lookups; empty means all repositories.
type Finding struct {
	Description string        `json:"description"`
	FixType     model.FixType `json:"fix_type"`
	FilePath    string        `json:"file_path,omitempty"`
	Code        string        `json:"code,omitempty"`
	Repository  string        `json:"repository,omitempty"`
}
