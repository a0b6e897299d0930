// Package model defines the domain types shared across the retrieval and
// auto-fix pipelines: graph entities, retrieval results, fix proposals,
// verification outcomes, human decisions, and entitlements.
//
// Types here are plain values with derived-value methods. Validation of
// caller-supplied input lives in validate.go and runs at public-API ingress.
package model

import "time"

// EntityKind identifies the kind of code entity a graph node represents.
type EntityKind string

const (
	KindFunction EntityKind = "Function"
	KindClass    EntityKind = "Class"
	KindFile     EntityKind = "File"
)

// AllEntityKinds is the default kind set for retrieval when the caller does
// not restrict kinds.
var AllEntityKinds = []EntityKind{KindFunction, KindClass, KindFile}

// ValidEntityKind reports whether k is a known entity kind.
func ValidEntityKind(k EntityKind) bool {
	switch k {
	case KindFunction, KindClass, KindFile:
		return true
	}
	return false
}

// EdgeType is a typed relation between code nodes.
type EdgeType string

const (
	EdgeCalls    EdgeType = "CALLS"
	EdgeUses     EdgeType = "USES"
	EdgeInherits EdgeType = "INHERITS"
	EdgeImports  EdgeType = "IMPORTS"
	EdgeContains EdgeType = "CONTAINS"
	EdgeModified EdgeType = "MODIFIED" // Commit -> File, carries committedAt.
)

// TraversalEdgeTypes are the edge types followed during relationship
// expansion and path traversal. MODIFIED is excluded: it links commits to
// files and is queried through commit-specific statements.
var TraversalEdgeTypes = []EdgeType{EdgeCalls, EdgeUses, EdgeInherits, EdgeImports, EdgeContains}

// ValidEdgeType reports whether e is a known edge type.
func ValidEdgeType(e EdgeType) bool {
	switch e {
	case EdgeCalls, EdgeUses, EdgeInherits, EdgeImports, EdgeContains, EdgeModified:
		return true
	}
	return false
}

// CodeNode is a Function, Class, or File in the code graph. Nodes are created
// by the ingest pipeline and are read-only here; qualifiedName is the primary
// identity, unique per tenant.
type CodeNode struct {
	QualifiedName string     `json:"qualified_name"`
	Name          string     `json:"name"`
	Kind          EntityKind `json:"kind"`
	FilePath      string     `json:"file_path"`
	LineStart     int        `json:"line_start"`
	LineEnd       int        `json:"line_end"`
	Docstring     string     `json:"docstring,omitempty"`
	Embedding     []float32  `json:"embedding,omitempty"`
	TenantID      string     `json:"tenant_id"`
}

// Commit is a git commit known to the graph via MODIFIED edges.
type Commit struct {
	SHA              string    `json:"sha"`
	ShortSHA         string    `json:"short_sha"`
	MessageSubject   string    `json:"message_subject"`
	AuthorName       string    `json:"author_name"`
	AuthorEmail      string    `json:"author_email"`
	CommittedAt      time.Time `json:"committed_at"`
	ParentSHAs       []string  `json:"parent_shas,omitempty"`
	ChangedFilePaths []string  `json:"changed_file_paths,omitempty"`
	ImpactScore      float64   `json:"impact_score"`
	Embedding        []float32 `json:"embedding,omitempty"`
	TenantID         string    `json:"tenant_id"`
}
