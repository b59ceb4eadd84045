package api

import (
	"context"
	"testing"

	"referral-ledger-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSeed() models.SeedConfig {
	return models.SeedConfig{
		Users: []models.SeedUser{
			{Name: "John Doe", Email: "john@example.com", ReferralCode: "JOHN2024"},
			{Name: "Alice Johnson", Email: "alice@example.com", ReferralCode: "ALICE2024", ParentReferralCode: "JOHN2024"},
			{Name: "Carol Williams", Email: "carol@example.com", ReferralCode: "CAROL2024", ParentReferralCode: "ALICE2024"},
		},
		Purchases: []models.SeedPurchase{
			{BuyerReferralCode: "ALICE2024", Amount: "5000"},
			{BuyerReferralCode: "CAROL2024", Amount: "3400"},
		},
	}
}

func TestSeed_Idempotent(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	seeded, err := s.Seed(ctx, testSeed())
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = s.Seed(ctx, testSeed())
	require.NoError(t, err)
	assert.False(t, seeded)

	users, err := s.GetUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	john, err := s.GetUserByReferralCode(ctx, "JOHN2024")
	require.NoError(t, err)
	// 50 from Alice plus 6.8 at level two from Carol
	assertDecimal(t, "56.8", john.TotalEarnings)

	assertReplay(t, s)
}

func TestSeed_InvalidPurchase(t *testing.T) {
	s, _ := setupTestService(t)
	cfg := testSeed()
	cfg.Purchases = append(cfg.Purchases, models.SeedPurchase{BuyerReferralCode: "ALICE2024", Amount: "10"})

	_, err := s.Seed(context.Background(), cfg)
	require.Error(t, err)
}
