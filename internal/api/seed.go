package api

import (
	"context"
	"fmt"

	"referral-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Seed registers the configured users and replays their purchases through
// the purchase processor. It does nothing when users already exist and
// reports whether it seeded.
func (s *ReferralService) Seed(ctx context.Context, config models.SeedConfig) (bool, error) {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		zap.L().Info("Users already exist, skipping seed", zap.Int("count", count))
		return false, nil
	}

	idsByCode := make(map[string]string, len(config.Users))
	for _, seed := range config.Users {
		user, err := s.RegisterUser(ctx, models.RegisterUserParams{
			Name:               seed.Name,
			Email:              seed.Email,
			ReferralCode:       seed.ReferralCode,
			ParentReferralCode: seed.ParentReferralCode,
		})
		if err != nil {
			return false, fmt.Errorf("failed to seed user %s: %w", seed.ReferralCode, err)
		}
		idsByCode[user.ReferralCode] = user.Id
	}

	for i, seed := range config.Purchases {
		buyerId, ok := idsByCode[seed.BuyerReferralCode]
		if !ok {
			return false, fmt.Errorf("seed purchase %d: unknown buyer %s", i, seed.BuyerReferralCode)
		}
		amount, err := decimal.NewFromString(seed.Amount)
		if err != nil {
			return false, fmt.Errorf("seed purchase %d: invalid amount %q: %w", i, seed.Amount, err)
		}
		if _, err := s.ProcessPurchase(ctx, buyerId, amount); err != nil {
			return false, fmt.Errorf("failed to seed purchase %d: %w", i, err)
		}
	}

	zap.L().Info("Seed data loaded",
		zap.Int("users", len(config.Users)),
		zap.Int("purchases", len(config.Purchases)))
	return true, nil
}
