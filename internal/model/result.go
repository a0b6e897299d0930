package model

// Relationship is a derived neighbor of a retrieval result: the neighbor's
// qualified name plus the edge type that connects them.
type Relationship struct {
	QualifiedName string   `json:"qualified_name"`
	EdgeType      EdgeType `json:"edge_type"`
}

// RetrievalResult is one match returned to the caller. Code carries the
// rendered snippet (context lines plus a caret marker on the entity range);
// Score is normalized to [0, 1].
type RetrievalResult struct {
	Kind          EntityKind     `json:"kind"`
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

// Clone returns a deep copy. Cached results are cloned on both store and
// lookup so caller mutations never reach the cached copy.
func (r RetrievalResult) Clone() RetrievalResult {
	out := r
	if r.Relationships != nil {
		out.Relationships = make([]Relationship, len(r.Relationships))
		copy(out.Relationships, r.Relationships)
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// CloneResults deep-copies a result slice.
func CloneResults(rs []RetrievalResult) []RetrievalResult {
	if rs == nil {
		return nil
	}
	out := make([]RetrievalResult, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// Answer is the response from Ask mode.
type Answer struct {
	Answer     string            `json:"answer"`
	Sources    []RetrievalResult `json:"sources"`
	Confidence float64           `json:"confidence"`
	FollowUps  []string          `json:"follow_ups,omitempty"`
	ElapsedMs  int64             `json:"elapsed_ms"`
}
