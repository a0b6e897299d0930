// Package learning persists human decisions on proposed fixes and feeds
// them back into the pipeline: confidence adjustment, auto-approve gating,
// and historical-feedback prompt blocks all read from the decision log.
package learning

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/repotoire/repotoire/internal/model"
)

// Store is an append-only JSONL decision log with an in-memory read cache.
// One decision per line; the file is the durable source of truth and is
// fsynced on every append.
type Store struct {
	path string
	log  *slog.Logger

	mu        sync.Mutex
	decisions []model.FixDecision
	loaded    bool
}

// NewStore creates a store backed by the JSONL file at path. The file is
// created on first append.
func NewStore(path string, log *slog.Logger) *Store {
	return &Store{path: path, log: log}
}

// Record validates and appends a decision. Missing ID and timestamp are
// filled in.
func (s *Store) Record(d model.FixDecision) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}
	if issues := model.ValidateDecision(d); issues.HasErrors() {
		return fmt.Errorf("learning: %s", issues.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("learning: create log dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("learning: open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	line, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("learning: marshal decision: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("learning: append decision: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("learning: sync log: %w", err)
	}

	s.decisions = append(s.decisions, d)
	return nil
}

// All returns every recorded decision in log order.
func (s *Store) All() ([]model.FixDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	out := make([]model.FixDecision, len(s.decisions))
	copy(out, s.decisions)
	return out, nil
}

// ForType returns decisions for one fix type in log order.
func (s *Store) ForType(fixType model.FixType) ([]model.FixDecision, error) {
	return s.Where(fixType, "", time.Time{})
}

// Where returns decisions matching all given filters in log order. A zero
// value disables that filter. The scan is linear; the log is small.
func (s *Store) Where(fixType model.FixType, repository string, since time.Time) ([]model.FixDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	var out []model.FixDecision
	for _, d := range s.decisions {
		if fixType != "" && d.FixType != fixType {
			continue
		}
		if repository != "" && d.Repository != repository {
			continue
		}
		if !since.IsZero() && d.Timestamp.Before(since) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// loadLocked reads the log once. Corrupt lines are skipped with a warning
// so one bad write cannot poison the whole history.
func (s *Store) loadLocked() error {
	if s.loaded {
		return nil
	}
	s.loaded = true

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("learning: open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		var d model.FixDecision
		if err := json.Unmarshal(scanner.Bytes(), &d); err != nil {
			s.log.Warn("skipping corrupt decision log line", "line", lineNo, "error", err)
			continue
		}
		s.decisions = append(s.decisions, d)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("learning: read log: %w", err)
	}
	return nil
}

// rejectionCommentLimit caps how much of a reviewer comment is carried
// into insights and prompt blocks.
const rejectionCommentLimit = 200

// Insights summarizes decision history for one fix type.
type Insights struct {
	FixType          model.FixType                 `json:"fix_type"`
	Total            int                           `json:"total"`
	Approvals        int                           `json:"approvals"`
	ApprovalRate     float64                       `json:"approval_rate"`
	RejectionReasons map[model.RejectionReason]int `json:"rejection_reasons,omitempty"`
	// RecentRejectionComments holds up to three reviewer comments from the
	// newest rejections, newest first, each truncated.
	RecentRejectionComments []string `json:"recent_rejection_comments,omitempty"`
	Trend                   string   `json:"trend"` // "improving", "declining", or "stable"
}

// InsightsFor computes approval statistics for a fix type across all
// repositories. Modified decisions count as approvals.
func (s *Store) InsightsFor(fixType model.FixType) (Insights, error) {
	return s.InsightsWhere(fixType, "")
}

// InsightsWhere computes approval statistics for a fix type, optionally
// scoped to one repository. An empty repository means all repositories.
func (s *Store) InsightsWhere(fixType model.FixType, repository string) (Insights, error) {
	decisions, err := s.Where(fixType, repository, time.Time{})
	if err != nil {
		return Insights{}, err
	}

	ins := Insights{
		FixType:          fixType,
		Total:            len(decisions),
		RejectionReasons: make(map[model.RejectionReason]int),
		Trend:            "stable",
	}
	for _, d := range decisions {
		if d.CountsAsApproval() {
			ins.Approvals++
			continue
		}
		if d.RejectionReason != nil {
			ins.RejectionReasons[*d.RejectionReason]++
		}
		if d.RejectionComment != "" {
			comment := d.RejectionComment
			if len(comment) > rejectionCommentLimit {
				comment = comment[:rejectionCommentLimit]
			}
			// Newest first; the log is append-ordered so prepend.
			ins.RecentRejectionComments = append([]string{comment}, ins.RecentRejectionComments...)
			if len(ins.RecentRejectionComments) > 3 {
				ins.RecentRejectionComments = ins.RecentRejectionComments[:3]
			}
		}
	}
	if ins.Total > 0 {
		ins.ApprovalRate = float64(ins.Approvals) / float64(ins.Total)
	}
	ins.Trend = trend(decisions)
	return ins, nil
}

// trend compares approval rates between the older and the recent half of
// the history. A swing beyond 0.1 in either direction breaks "stable".
func trend(decisions []model.FixDecision) string {
	if len(decisions) < 4 {
		return "stable"
	}
	mid := len(decisions) / 2
	older, recent := decisions[:mid], decisions[mid:]

	rate := func(ds []model.FixDecision) float64 {
		n := 0
		for _, d := range ds {
			if d.CountsAsApproval() {
				n++
			}
		}
		return float64(n) / float64(len(ds))
	}

	delta := rate(recent) - rate(older)
	switch {
	case delta > 0.1:
		return "improving"
	case delta < -0.1:
		return "declining"
	default:
		return "stable"
	}
}
