package learning

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/repotoire/repotoire/internal/model"
)

// minDecisionsForAdaptation is the history size below which the pipeline
// behaves as if no history exists. Small samples would whipsaw confidence.
const minDecisionsForAdaptation = 10

const (
	// downgradeThreshold is the approval rate at or below which confidence
	// steps down one level.
	downgradeThreshold = 0.3
	// upgradeThreshold is the approval rate at or above which Low steps up
	// to Medium. Confidence never climbs to High from history alone.
	upgradeThreshold = 0.9
	// feedbackThreshold is the rejection rate at or above which prompts
	// carry a historical-feedback block.
	feedbackThreshold = 0.5
	// autoApproveFloor is the approval rate below which auto-approve is
	// refused regardless of other signals.
	autoApproveFloor = 0.5
)

// Adapter adjusts pipeline behavior from recorded decision history.
type Adapter struct {
	store *Store
	log   *slog.Logger
}

// NewAdapter creates an adapter over the decision store.
func NewAdapter(store *Store, log *slog.Logger) *Adapter {
	return &Adapter{store: store, log: log}
}

// AdjustConfidence maps the model's self-reported confidence through the
// approval history for the fix type, scoped to repository when non-empty.
// A repository with thin history falls back to the type-wide history; with
// thin history overall the confidence passes through unchanged.
func (a *Adapter) AdjustConfidence(fixType model.FixType, repository string, confidence model.Confidence) model.Confidence {
	ins, err := a.store.InsightsWhere(fixType, repository)
	if err != nil {
		a.log.Warn("confidence adjustment skipped", "fix_type", fixType, "error", err)
		return confidence
	}
	if repository != "" && ins.Total < minDecisionsForAdaptation {
		ins, err = a.store.InsightsFor(fixType)
		if err != nil {
			a.log.Warn("confidence adjustment skipped", "fix_type", fixType, "error", err)
			return confidence
		}
	}
	if ins.Total < minDecisionsForAdaptation {
		return confidence
	}

	switch {
	case ins.ApprovalRate <= downgradeThreshold:
		adjusted := confidence.StepDown()
		if adjusted != confidence {
			a.log.Info("confidence downgraded from history",
				"fix_type", fixType,
				"approval_rate", ins.ApprovalRate,
				"from", confidence, "to", adjusted,
			)
		}
		return adjusted
	case ins.ApprovalRate >= upgradeThreshold && confidence == model.ConfidenceLow:
		a.log.Info("confidence upgraded from history",
			"fix_type", fixType,
			"approval_rate", ins.ApprovalRate,
			"from", confidence, "to", model.ConfidenceMedium,
		)
		return model.ConfidenceMedium
	}
	return confidence
}

// ShouldAutoApprove reports whether historically well-received fix types
// may skip human review. Thin history always requires review.
func (a *Adapter) ShouldAutoApprove(fixType model.FixType) bool {
	ins, err := a.store.InsightsFor(fixType)
	if err != nil || ins.Total < minDecisionsForAdaptation {
		return false
	}
	return ins.ApprovalRate >= autoApproveFloor
}

// FeedbackPromptBlock renders a prompt section describing why past fixes
// of this type were rejected. Empty unless the rejection rate crosses the
// feedback threshold with enough history.
func (a *Adapter) FeedbackPromptBlock(fixType model.FixType) string {
	ins, err := a.store.InsightsFor(fixType)
	if err != nil || ins.Total < minDecisionsForAdaptation {
		return ""
	}
	rejectionRate := 1 - ins.ApprovalRate
	if rejectionRate < feedbackThreshold {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Historical Feedback\n")
	fmt.Fprintf(&b, "%.0f%% of past %q fixes were rejected by reviewers.\n", rejectionRate*100, fixType)

	if len(ins.RejectionReasons) > 0 {
		b.WriteString("Common rejection reasons:\n")
		type rc struct {
			reason model.RejectionReason
			count  int
		}
		sorted := make([]rc, 0, len(ins.RejectionReasons))
		for r, c := range ins.RejectionReasons {
			sorted = append(sorted, rc{r, c})
		}
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].count != sorted[j].count {
				return sorted[i].count > sorted[j].count
			}
			return sorted[i].reason < sorted[j].reason
		})
		for _, e := range sorted {
			fmt.Fprintf(&b, "- %s (%d)\n", e.reason, e.count)
		}
	}

	if len(ins.RecentRejectionComments) > 0 {
		b.WriteString("Reviewers said:\n")
		for _, comment := range ins.RecentRejectionComments {
			fmt.Fprintf(&b, "- %q\n", comment)
		}
	}

	if low := a.lowApprovalFixTypes(); len(low) > 0 {
		fmt.Fprintf(&b, "Fix types with low approval rates: %s.\n", strings.Join(low, ", "))
	}

	b.WriteString("Avoid repeating these mistakes. Prefer conservative, minimal changes.\n")
	return b.String()
}

// lowApprovalFixTypes lists fix types whose approval rate sits under the
// auto-approve floor with enough history to mean something, sorted.
func (a *Adapter) lowApprovalFixTypes() []string {
	decisions, err := a.store.All()
	if err != nil {
		return nil
	}

	totals := make(map[model.FixType]int)
	approvals := make(map[model.FixType]int)
	for _, d := range decisions {
		totals[d.FixType]++
		if d.CountsAsApproval() {
			approvals[d.FixType]++
		}
	}

	var low []string
	for ft, total := range totals {
		if total < minDecisionsForAdaptation {
			continue
		}
		if float64(approvals[ft])/float64(total) < autoApproveFloor {
			low = append(low, string(ft))
		}
	}
	sort.Strings(low)
	return low
}
