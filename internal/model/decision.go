package model

import "time"

// DecisionKind is the human action taken on a fix proposal.
type DecisionKind string

const (
	DecisionApproved DecisionKind = "approved"
	DecisionRejected DecisionKind = "rejected"
	DecisionModified DecisionKind = "modified"
)

// ValidDecisionKind reports whether d is a known decision kind.
func ValidDecisionKind(d DecisionKind) bool {
	switch d {
	case DecisionApproved, DecisionRejected, DecisionModified:
		return true
	}
	return false
}

// RejectionReason classifies why a fix was rejected.
type RejectionReason string

const (
	RejectStyleMismatch  RejectionReason = "style_mismatch"
	RejectTooRisky       RejectionReason = "too_risky"
	RejectIncorrectLogic RejectionReason = "incorrect_logic"
	RejectNotNeeded      RejectionReason = "not_needed"
	RejectBreaksTests    RejectionReason = "breaks_tests"
	RejectOther          RejectionReason = "other"
)

// FixDecision is an immutable record of one human action on a proposal.
// Decisions are appended to the decision log and never rewritten.
type FixDecision struct {
	ID               string            `json:"id"`
	FixID            string            `json:"fix_id"`
	Decision         DecisionKind      `json:"decision"`
	RejectionReason  *RejectionReason  `json:"rejection_reason,omitempty"`
	RejectionComment string            `json:"rejection_comment,omitempty"`
	FixType          FixType           `json:"fix_type"`
	Confidence       Confidence        `json:"confidence"`
	FindingType      string            `json:"finding_type,omitempty"`
	FilePath         string            `json:"file_path,omitempty"`
	Repository       string            `json:"repository,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
	Characteristics  map[string]string `json:"characteristics,omitempty"`
}

// CountsAsApproval reports whether this decision counts toward the approval
// rate. Modified fixes were good enough to keep, so they count.
func (d FixDecision) CountsAsApproval() bool {
	return d.Decision == DecisionApproved || d.Decision == DecisionModified
}
