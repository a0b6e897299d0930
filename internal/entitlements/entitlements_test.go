package entitlements

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repotoire/repotoire/internal/model"
)

func TestCheckAvailable_FreeTier(t *testing.T) {
	err := CheckAvailable(model.EntitlementForTier(model.TierFree, false))
	require.Error(t, err)

	var notEnt *NotEntitledError
	require.ErrorAs(t, err, &notEnt)
	assert.Equal(t, model.TierFree, notEnt.Tier)
	assert.Equal(t, PricingURL, notEnt.URL)
	assert.Contains(t, err.Error(), "https://repotoire.dev/pricing")
}

func TestCheckAvailable_ProWithoutAddon(t *testing.T) {
	err := CheckAvailable(model.EntitlementForTier(model.TierPro, false))
	require.Error(t, err)

	var notEnt *NotEntitledError
	require.ErrorAs(t, err, &notEnt)
	assert.Equal(t, AddonsURL, notEnt.URL)
	assert.Contains(t, err.Error(), "add-on")
}

func TestCheckAvailable_Entitled(t *testing.T) {
	assert.NoError(t, CheckAvailable(model.EntitlementForTier(model.TierPro, true)))
	assert.NoError(t, CheckAvailable(model.EntitlementForTier(model.TierEnterprise, false)))
}

func TestCheckWithinLimit(t *testing.T) {
	now := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

	ent := model.EntitlementForTier(model.TierPro, true)
	ent.MonthlyRunsUsed = 99
	assert.NoError(t, CheckWithinLimit(ent, now))

	ent.MonthlyRunsUsed = 100
	err := CheckWithinLimit(ent, now)
	require.Error(t, err)

	var limit *UsageLimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 100, limit.Used)
	assert.Equal(t, 100, limit.Limit)
	assert.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), limit.ResetsAt)
}

func TestCheckWithinLimit_Unlimited(t *testing.T) {
	ent := model.EntitlementForTier(model.TierEnterprise, false)
	ent.MonthlyRunsUsed = 1_000_000
	assert.NoError(t, CheckWithinLimit(ent, time.Now()))
}

func TestMemoryAccountant_DefaultsToFree(t *testing.T) {
	acct := NewMemoryAccountant()

	ent, err := acct.Entitlement(context.Background(), "unknown-customer")
	require.NoError(t, err)
	assert.Equal(t, model.TierFree, ent.Tier)
	assert.False(t, ent.IsAvailable())
}

func TestMemoryAccountant_CountsRuns(t *testing.T) {
	acct := NewMemoryAccountant()
	acct.SetTier("acme", model.TierPro, true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, acct.RecordRun(ctx, "acme"))
	}

	ent, err := acct.Entitlement(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 3, ent.MonthlyRunsUsed)
	assert.Equal(t, 97, ent.RemainingRuns())

	// Usage is per customer.
	other, err := acct.Entitlement(ctx, "other")
	require.NoError(t, err)
	assert.Zero(t, other.MonthlyRunsUsed)
}

func TestMemoryAccountant_ResetsAtMonthBoundary(t *testing.T) {
	acct := NewMemoryAccountant()
	acct.SetTier("acme", model.TierPro, true)
	ctx := context.Background()

	now := time.Date(2026, time.January, 31, 23, 0, 0, 0, time.UTC)
	acct.now = func() time.Time { return now }
	require.NoError(t, acct.RecordRun(ctx, "acme"))
	require.NoError(t, acct.RecordRun(ctx, "acme"))

	ent, err := acct.Entitlement(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, ent.MonthlyRunsUsed)

	// One hour later it is February: the counter starts over.
	now = now.Add(2 * time.Hour)
	ent, err = acct.Entitlement(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, ent.MonthlyRunsUsed)

	require.NoError(t, acct.RecordRun(ctx, "acme"))
	ent, err = acct.Entitlement(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, ent.MonthlyRunsUsed)
}

func TestErrorsAreDistinguishable(t *testing.T) {
	var notEnt *NotEntitledError
	var limit *UsageLimitError

	err := CheckAvailable(model.EntitlementForTier(model.TierFree, false))
	assert.True(t, errors.As(err, &notEnt))
	assert.False(t, errors.As(err, &limit))
}
