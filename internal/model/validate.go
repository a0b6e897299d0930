package model

import (
	"fmt"
	"strings"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding: which field, what is wrong, how bad.
type Issue struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Issues is the result of validating one input value.
type Issues []Issue

// HasErrors reports whether any issue is error-severity.
func (is Issues) HasErrors() bool {
	for _, i := range is {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Error summarizes error-severity issues into one message.
func (is Issues) Error() string {
	var parts []string
	for _, i := range is {
		if i.Severity == SeverityError {
			parts = append(parts, i.Field+": "+i.Message)
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

const maxQueryLen = 8192

// ValidateQuery checks a retrieval query and its topK.
func ValidateQuery(query string, topK int) Issues {
	var out Issues
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		out = append(out, Issue{Field: "query", Message: "must not be empty", Severity: SeverityError})
	} else if len(trimmed) < 3 {
		out = append(out, Issue{Field: "query", Message: "too short; need at least 3 characters", Severity: SeverityError})
	}
	if len(query) > maxQueryLen {
		out = append(out, Issue{Field: "query", Message: fmt.Sprintf("exceeds %d characters", maxQueryLen), Severity: SeverityError})
	}
	if topK < 0 {
		out = append(out, Issue{Field: "top_k", Message: "must not be negative", Severity: SeverityError})
	}
	if topK > 1000 {
		out = append(out, Issue{Field: "top_k", Message: "capped at 1000", Severity: SeverityWarning})
	}
	return out
}

// ValidateKinds checks a caller-supplied entity-kind filter.
func ValidateKinds(kinds []EntityKind) Issues {
	var out Issues
	for _, k := range kinds {
		if !ValidEntityKind(k) {
			out = append(out, Issue{Field: "kinds", Message: fmt.Sprintf("unknown entity kind %q", k), Severity: SeverityError})
		}
	}
	return out
}

// ValidateTraversal checks RetrieveByPath inputs.
func ValidateTraversal(startQName string, edgeTypes []EdgeType, maxHops int) Issues {
	var out Issues
	if strings.TrimSpace(startQName) == "" {
		out = append(out, Issue{Field: "start", Message: "qualified name must not be empty", Severity: SeverityError})
	}
	if len(edgeTypes) == 0 {
		out = append(out, Issue{Field: "edge_types", Message: "at least one edge type required", Severity: SeverityError})
	}
	for _, e := range edgeTypes {
		if !ValidEdgeType(e) {
			out = append(out, Issue{Field: "edge_types", Message: fmt.Sprintf("unknown edge type %q", e), Severity: SeverityError})
		}
	}
	if maxHops < 1 || maxHops > 10 {
		out = append(out, Issue{Field: "max_hops", Message: "must be between 1 and 10", Severity: SeverityError})
	}
	return out
}

// ValidateDecision checks a fix decision before it is recorded.
func ValidateDecision(d FixDecision) Issues {
	var out Issues
	if d.FixID == "" {
		out = append(out, Issue{Field: "fix_id", Message: "must not be empty", Severity: SeverityError})
	}
	if !ValidDecisionKind(d.Decision) {
		out = append(out, Issue{Field: "decision", Message: fmt.Sprintf("unknown decision %q", d.Decision), Severity: SeverityError})
	}
	if !ValidFixType(d.FixType) {
		out = append(out, Issue{Field: "fix_type", Message: fmt.Sprintf("unknown fix type %q", d.FixType), Severity: SeverityError})
	}
	if d.Decision == DecisionRejected && d.RejectionReason == nil {
		out = append(out, Issue{Field: "rejection_reason", Message: "recommended for rejected decisions", Severity: SeverityWarning})
	}
	return out
}
