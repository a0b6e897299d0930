// Package entitlements gates the auto-fix feature by subscription tier and
// monthly usage. Checks are advisory locally but the errors carry everything
// a caller needs to present an upgrade path.
package entitlements

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/repotoire/repotoire/internal/model"
)

// URLs surfaced in entitlement errors.
const (
	PricingURL = "https://repotoire.dev/pricing"
	AddonsURL  = "https://repotoire.dev/account/addons"
)

// NotEntitledError reports that the auto-fix feature is not available on
// the customer's current tier. URL points at the action that unlocks it.
type NotEntitledError struct {
	Tier   model.Tier
	Access model.Access
	URL    string
}

func (e *NotEntitledError) Error() string {
	if e.Access == model.AccessAddon {
		return fmt.Sprintf("entitlements: auto-fix requires the add-on on the %s tier; enable it at %s", e.Tier, e.URL)
	}
	return fmt.Sprintf("entitlements: auto-fix is not available on the %s tier; upgrade at %s", e.Tier, e.URL)
}

// UsageLimitError reports that the monthly run cap is exhausted.
type UsageLimitError struct {
	Used     int
	Limit    int
	ResetsAt time.Time
}

func (e *UsageLimitError) Error() string {
	return fmt.Sprintf("entitlements: monthly run limit reached (%d/%d); resets %s",
		e.Used, e.Limit, e.ResetsAt.Format("2006-01-02"))
}

// CheckAvailable returns a NotEntitledError when the feature is off for this
// entitlement.
func CheckAvailable(ent model.Entitlement) error {
	if ent.IsAvailable() {
		return nil
	}
	url := PricingURL
	if ent.Access == model.AccessAddon {
		url = AddonsURL
	}
	return &NotEntitledError{Tier: ent.Tier, Access: ent.Access, URL: url}
}

// CheckWithinLimit returns a UsageLimitError when this month's runs are used
// up.
func CheckWithinLimit(ent model.Entitlement, now time.Time) error {
	if ent.IsWithinLimit() {
		return nil
	}
	return &UsageLimitError{
		Used:     ent.MonthlyRunsUsed,
		Limit:    ent.MonthlyRunsLimit,
		ResetsAt: model.NextMonthlyReset(now),
	}
}

// Accountant resolves a customer's entitlement and tracks run usage.
// Implementations must reset counters at the UTC month boundary.
type Accountant interface {
	Entitlement(ctx context.Context, customerID string) (model.Entitlement, error)
	RecordRun(ctx context.Context, customerID string) error
}

// MemoryAccountant keeps tiers and usage in memory. Usage counters are
// monotone within a month and reset when the month rolls over.
type MemoryAccountant struct {
	now func() time.Time

	mu    sync.Mutex
	tiers map[string]tierRecord
	usage map[string]usageRecord
}

type tierRecord struct {
	tier  model.Tier
	addon bool
}

type usageRecord struct {
	month time.Time // first of month, UTC
	runs  int
}

// NewMemoryAccountant creates an in-memory accountant. Unknown customers
// default to the free tier.
func NewMemoryAccountant() *MemoryAccountant {
	return &MemoryAccountant{
		now:   time.Now,
		tiers: make(map[string]tierRecord),
		usage: make(map[string]usageRecord),
	}
}

// SetTier assigns a customer's tier. Exposed for tests and for embedders
// that resolve tiers out of band.
func (m *MemoryAccountant) SetTier(customerID string, tier model.Tier, addonEnabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers[customerID] = tierRecord{tier: tier, addon: addonEnabled}
}

func (m *MemoryAccountant) Entitlement(_ context.Context, customerID string) (model.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.tiers[customerID]
	if !ok {
		rec = tierRecord{tier: model.TierFree}
	}
	ent := model.EntitlementForTier(rec.tier, rec.addon)
	ent.MonthlyRunsUsed = m.runsThisMonthLocked(customerID)
	return ent, nil
}

func (m *MemoryAccountant) RecordRun(_ context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	month := monthOf(m.now())
	u := m.usage[customerID]
	if !u.month.Equal(month) {
		u = usageRecord{month: month}
	}
	u.runs++
	m.usage[customerID] = u
	return nil
}

func (m *MemoryAccountant) runsThisMonthLocked(customerID string) int {
	u, ok := m.usage[customerID]
	if !ok || !u.month.Equal(monthOf(m.now())) {
		return 0
	}
	return u.runs
}

func monthOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
