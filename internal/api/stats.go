package api

import (
	"context"

	"referral-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetReferralStats derives a user's referral counts and earnings. It reads
// only; stats are never cached.
func (s *ReferralService) GetReferralStats(ctx context.Context, userId string) (*models.ReferralStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.store.GetUserById(ctx, userId)
	if err != nil {
		return nil, err
	}

	levelOne, err := s.graph.DirectChildren(ctx, userId)
	if err != nil {
		return nil, err
	}

	// Level two is the union of the level one users' referrals
	levelTwo := make(map[string]bool)
	for _, child := range levelOne {
		for _, grandchild := range child.DirectReferrals {
			levelTwo[grandchild] = true
		}
	}

	monthly, err := s.store.GetMonthlyEarnings(ctx, userId, s.now())
	if err != nil {
		return nil, err
	}

	average := decimal.Zero
	if len(levelOne) > 0 {
		average = user.TotalEarnings.Div(decimal.NewFromInt(int64(len(levelOne))))
	}

	stats := &models.ReferralStats{
		TotalReferrals:            len(levelOne) + len(levelTwo),
		LevelOneReferrals:         len(levelOne),
		LevelTwoReferrals:         len(levelTwo),
		TotalEarnings:             user.TotalEarnings,
		MonthlyEarnings:           monthly,
		AverageEarningPerReferral: average,
	}

	zap.L().Debug("Computed referral stats",
		zap.String("user_id", userId),
		zap.Int("level_one", stats.LevelOneReferrals),
		zap.Int("level_two", stats.LevelTwoReferrals),
		zap.String("total_earnings", stats.TotalEarnings.String()))
	return stats, nil
}
