package model

import "time"

// Tier is a customer's subscription tier.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Access describes how a feature is reachable for a tier.
type Access string

const (
	AccessUnavailable Access = "unavailable"
	AccessAddon       Access = "addon"
	AccessIncluded    Access = "included"
)

// UnlimitedRuns marks a tier with no monthly run cap.
const UnlimitedRuns = -1

// Entitlement is the per-customer policy for the auto-fix feature. It is
// recomputed per request and never cached beyond a single generation call.
type Entitlement struct {
	Tier             Tier   `json:"tier"`
	Access           Access `json:"access"`
	AddonEnabled     bool   `json:"addon_enabled"` // meaningful only for AccessAddon
	MaxN             int    `json:"max_n"`
	MonthlyRunsLimit int    `json:"monthly_runs_limit"` // UnlimitedRuns = no cap
	MonthlyRunsUsed  int    `json:"monthly_runs_used"`
}

// IsAvailable reports whether the feature can be used at all.
func (e Entitlement) IsAvailable() bool {
	return e.Access == AccessIncluded || (e.Access == AccessAddon && e.AddonEnabled)
}

// IsWithinLimit reports whether another run is allowed this month.
func (e Entitlement) IsWithinLimit() bool {
	return e.MonthlyRunsLimit == UnlimitedRuns || e.MonthlyRunsUsed < e.MonthlyRunsLimit
}

// RemainingRuns returns UnlimitedRuns for uncapped tiers, otherwise the
// non-negative number of runs left this month.
func (e Entitlement) RemainingRuns() int {
	if e.MonthlyRunsLimit == UnlimitedRuns {
		return UnlimitedRuns
	}
	left := e.MonthlyRunsLimit - e.MonthlyRunsUsed
	if left < 0 {
		return 0
	}
	return left
}

// EntitlementForTier returns the default entitlement for a tier.
// AddonEnabled reflects whether the customer purchased the Pro add-on.
func EntitlementForTier(tier Tier, addonEnabled bool) Entitlement {
	switch tier {
	case TierEnterprise:
		return Entitlement{Tier: tier, Access: AccessIncluded, MaxN: 10, MonthlyRunsLimit: UnlimitedRuns}
	case TierPro:
		return Entitlement{Tier: tier, Access: AccessAddon, AddonEnabled: addonEnabled, MaxN: 3, MonthlyRunsLimit: 100}
	default:
		return Entitlement{Tier: TierFree, Access: AccessUnavailable}
	}
}

// NextMonthlyReset returns the instant the usage counter resets: the first
// day of the next month at 00:00 UTC.
func NextMonthlyReset(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
