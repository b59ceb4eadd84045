package api

import (
	"context"
	"testing"

	"referral-ledger-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReferralStats_Average(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	root := registerTestUser(t, s, "John Doe", "JOHN2024", "")
	alice := registerTestUser(t, s, "Alice Johnson", "ALICE2024", "JOHN2024")
	registerTestUser(t, s, "Bob Smith", "BOB2024", "JOHN2024")
	registerTestUser(t, s, "Carol Williams", "CAROL2024", "JOHN2024")
	registerTestUser(t, s, "Dave Brown", "DAVE2024", "ALICE2024")
	registerTestUser(t, s, "Erin Green", "ERIN2024", "ALICE2024")

	// 1% of 1,575,000 is 15,750 for the sponsor
	_, err := s.ProcessPurchase(ctx, alice.Id, dec("1575000"))
	require.NoError(t, err)

	stats, err := s.GetReferralStats(ctx, root.Id)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.LevelOneReferrals)
	assert.Equal(t, 2, stats.LevelTwoReferrals)
	assert.Equal(t, 5, stats.TotalReferrals)
	assertDecimal(t, "15750", stats.TotalEarnings)
	assertDecimal(t, "5250", stats.AverageEarningPerReferral)
	assert.Equal(t, "5250.00", stats.AverageEarningPerReferral.StringFixed(2))
	assertDecimal(t, "15750", stats.MonthlyEarnings)
}

func TestGetReferralStats_NoReferrals(t *testing.T) {
	s, _ := setupTestService(t)
	root := registerTestUser(t, s, "John Doe", "JOHN2024", "")

	stats, err := s.GetReferralStats(context.Background(), root.Id)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalReferrals)
	assert.True(t, stats.AverageEarningPerReferral.IsZero())
	assert.True(t, stats.MonthlyEarnings.IsZero())
}

func TestGetReferralStats_UnknownUser(t *testing.T) {
	s, _ := setupTestService(t)
	_, err := s.GetReferralStats(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrUserNotFound)
}
