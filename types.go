package repotoire

import (
	"time"

	"github.com/repotoire/repotoire/internal/autofix"
	"github.com/repotoire/repotoire/internal/learning"
	"github.com/repotoire/repotoire/internal/model"
)

// Public value types. These are standalone structs with no internal imports
// in their fields; conversion helpers live at the bottom of this file because
// the root package is the only one that sees both sides of the boundary.

// Result is one retrieval match.
type Result struct {
	Kind          string         `json:"kind"`
	QualifiedName string         `json:"qualified_name"`
	Name          string         `json:"name"`
	FilePath      string         `json:"file_path"`
	LineStart     int            `json:"line_start"`
	LineEnd       int            `json:"line_end"`
	Docstring     string         `json:"docstring,omitempty"`
	Code          string         `json:"code"`
	Score         float64        `json:"score"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Relationship is a one-hop graph neighbor of a result.
type Relationship struct {
	QualifiedName string `json:"qualified_name"`
	EdgeType      string `json:"edge_type"`
}

// Answer is a grounded response to a natural-language question.
type Answer struct {
	Answer     string   `json:"answer"`
	Sources    []Result `json:"sources"`
	Confidence float64  `json:"confidence"`
	FollowUps  []string `json:"follow_ups,omitempty"`
	ElapsedMs  int64    `json:"elapsed_ms"`
}

// Finding describes a code issue for the auto-fix pipeline. Repository
// scopes decision-history lookups when set.
type Finding struct {
	Description string `json:"description"`
	FixType     string `json:"fix_type"` // security, simplify, refactor, extract, remove, documentation, type_hint
	FilePath    string `json:"file_path,omitempty"`
	Code        string `json:"code,omitempty"`
	Repository  string `json:"repository,omitempty"`
}

// Change is one file edit inside a fix.
type Change struct {
	FilePath     string `json:"file_path"`
	OriginalCode string `json:"original_code"`
	FixedCode    string `json:"fixed_code"`
}

// Fix is a verified fix proposal selected by the best-of-N pipeline.
type Fix struct {
	ID          string         `json:"id"`
	Finding     string         `json:"finding"`
	FixType     string         `json:"fix_type"`
	Confidence  string         `json:"confidence"` // high, medium, low
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Rationale   string         `json:"rationale"`
	Changes     []Change       `json:"changes"`
	Status      string         `json:"status"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Verification is the sandbox report for one fix.
type Verification struct {
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

// Decision records a human action on a fix.
type Decision struct {
	FixID            string            `json:"fix_id"`
	Decision         string            `json:"decision"` // approved, rejected, modified
	RejectionReason  string            `json:"rejection_reason,omitempty"`
	RejectionComment string            `json:"rejection_comment,omitempty"`
	FixType          string            `json:"fix_type"`
	Confidence       string            `json:"confidence"`
	FindingType      string            `json:"finding_type,omitempty"`
	FilePath         string            `json:"file_path,omitempty"`
	Repository       string            `json:"repository,omitempty"`
	Characteristics  map[string]string `json:"characteristics,omitempty"`
}

// Insights summarizes decision history for one fix type.
type Insights struct {
	FixType          string         `json:"fix_type"`
	Total            int            `json:"total"`
	Approvals        int            `json:"approvals"`
	ApprovalRate     float64        `json:"approval_rate"`
	RejectionReasons map[string]int `json:"rejection_reasons,omitempty"`
	Trend            string         `json:"trend"`
}

// Stats summarizes the indexed graph and cache effectiveness.
type Stats struct {
	Functions    int     `json:"functions"`
	Classes      int     `json:"classes"`
	Files        int     `json:"files"`
	Edges        int     `json:"edges"`
	CacheSize    int     `json:"cache_size"`
	CacheHits    int64   `json:"cache_hits"`
	CacheMisses  int64   `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	Decisions    int     `json:"decisions"`
}

// Entitlement is a customer's auto-fix policy.
type Entitlement struct {
	Tier             string `json:"tier"`   // free, pro, enterprise
	Access           string `json:"access"` // unavailable, addon, included
	AddonEnabled     bool   `json:"addon_enabled"`
	MaxN             int    `json:"max_n"`
	MonthlyRunsLimit int    `json:"monthly_runs_limit"` // -1 = unlimited
	MonthlyRunsUsed  int    `json:"monthly_runs_used"`
}

// ── Type converters ──────────────────────────────────────────────────────

func toPublicResult(r model.RetrievalResult) Result {
	out := Result{
		Kind:          string(r.Kind),
		QualifiedName: r.QualifiedName,
		Name:          r.Name,
		FilePath:      r.FilePath,
		LineStart:     r.LineStart,
		LineEnd:       r.LineEnd,
		Docstring:     r.Docstring,
		Code:          r.Code,
		Score:         r.Score,
		Metadata:      r.Metadata,
	}
	for _, rel := range r.Relationships {
		out.Relationships = append(out.Relationships, Relationship{
			QualifiedName: rel.QualifiedName,
			EdgeType:      string(rel.EdgeType),
		})
	}
	return out
}

func toPublicResults(rs []model.RetrievalResult) []Result {
	out := make([]Result, len(rs))
	for i, r := range rs {
		out[i] = toPublicResult(r)
	}
	return out
}

func toInternalResult(r Result) model.RetrievalResult {
	out := model.RetrievalResult{
		Kind:          model.EntityKind(r.Kind),
		QualifiedName: r.QualifiedName,
		Name:          r.Name,
		FilePath:      r.FilePath,
		LineStart:     r.LineStart,
		LineEnd:       r.LineEnd,
		Docstring:     r.Docstring,
		Code:          r.Code,
		Score:         r.Score,
		Metadata:      r.Metadata,
	}
	for _, rel := range r.Relationships {
		out.Relationships = append(out.Relationships, model.Relationship{
			QualifiedName: rel.QualifiedName,
			EdgeType:      model.EdgeType(rel.EdgeType),
		})
	}
	return out
}

func toPublicAnswer(a model.Answer) Answer {
	return Answer{
		Answer:     a.Answer,
		Sources:    toPublicResults(a.Sources),
		Confidence: a.Confidence,
		FollowUps:  a.FollowUps,
		ElapsedMs:  a.ElapsedMs,
	}
}

func toPublicFix(p model.FixProposal) Fix {
	out := Fix{
		ID:          p.ID,
		Finding:     p.Finding,
		FixType:     string(p.FixType),
		Confidence:  string(p.Confidence),
		Title:       p.Title,
		Description: p.Description,
		Rationale:   p.Rationale,
		Status:      string(p.Status),
		Metadata:    p.Metadata,
		CreatedAt:   p.CreatedAt,
	}
	for _, c := range p.Changes {
		out.Changes = append(out.Changes, Change{
			FilePath:     c.FilePath,
			OriginalCode: c.OriginalCode,
			FixedCode:    c.FixedCode,
		})
	}
	return out
}

func toInternalVerification(v Verification) model.VerificationResult {
	return model.VerificationResult(v)
}

func toInternalFinding(f Finding) autofix.Finding {
	return autofix.Finding{
		Description: f.Description,
		FixType:     model.FixType(f.FixType),
		FilePath:    f.FilePath,
		Code:        f.Code,
		Repository:  f.Repository,
	}
}

func toInternalDecision(d Decision) model.FixDecision {
	out := model.FixDecision{
		FixID:            d.FixID,
		Decision:         model.DecisionKind(d.Decision),
		RejectionComment: d.RejectionComment,
		FixType:          model.FixType(d.FixType),
		Confidence:       model.Confidence(d.Confidence),
		FindingType:      d.FindingType,
		FilePath:         d.FilePath,
		Repository:       d.Repository,
		Characteristics:  d.Characteristics,
	}
	if d.RejectionReason != "" {
		reason := model.RejectionReason(d.RejectionReason)
		out.RejectionReason = &reason
	}
	return out
}

func toPublicInsights(ins learning.Insights) Insights {
	out := Insights{
		FixType:      string(ins.FixType),
		Total:        ins.Total,
		Approvals:    ins.Approvals,
		ApprovalRate: ins.ApprovalRate,
		Trend:        ins.Trend,
	}
	if len(ins.RejectionReasons) > 0 {
		out.RejectionReasons = make(map[string]int, len(ins.RejectionReasons))
		for r, c := range ins.RejectionReasons {
			out.RejectionReasons[string(r)] = c
		}
	}
	return out
}

func toPublicEntitlement(e model.Entitlement) Entitlement {
	return Entitlement{
		Tier:             string(e.Tier),
		Access:           string(e.Access),
		AddonEnabled:     e.AddonEnabled,
		MaxN:             e.MaxN,
		MonthlyRunsLimit: e.MonthlyRunsLimit,
		MonthlyRunsUsed:  e.MonthlyRunsUsed,
	}
}

func toInternalEntitlement(e Entitlement) model.Entitlement {
	return model.Entitlement{
		Tier:             model.Tier(e.Tier),
		Access:           model.Access(e.Access),
		AddonEnabled:     e.AddonEnabled,
		MaxN:             e.MaxN,
		MonthlyRunsLimit: e.MonthlyRunsLimit,
		MonthlyRunsUsed:  e.MonthlyRunsUsed,
	}
}

func toInternalKinds(kinds []string) []model.EntityKind {
	if len(kinds) == 0 {
		return nil
	}
	out := make([]model.EntityKind, len(kinds))
	for i, k := range kinds {
		out[i] = model.EntityKind(k)
	}
	return out
}

func toInternalEdgeTypes(edgeTypes []string) []model.EdgeType {
	if len(edgeTypes) == 0 {
		return nil
	}
	out := make([]model.EdgeType, len(edgeTypes))
	for i, e := range edgeTypes {
		out[i] = model.EdgeType(e)
	}
	return out
}
