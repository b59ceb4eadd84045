package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetEarningsForUser returns a beneficiary's earnings in insertion order
func (s *SubledgerService) GetEarningsForUser(ctx context.Context, userId string) ([]models.Earning, error) {
	zap.L().Debug("Getting earnings", zap.String("user_id", userId))
	return s.queryEarnings(ctx, queryGetEarningsForUser, userId)
}

func (s *SubledgerService) GetEarningsForPurchase(ctx context.Context, purchaseId string) ([]models.Earning, error) {
	return s.queryEarnings(ctx, queryGetEarningsForPurchase, purchaseId)
}

// GetMonthlyEarnings sums the earnings created inside the calendar month that
// contains asOf, with month boundaries taken in asOf's location
func (s *SubledgerService) GetMonthlyEarnings(ctx context.Context, userId string, asOf time.Time) (decimal.Decimal, error) {
	earnings, err := s.GetEarningsForUser(ctx, userId)
	if err != nil {
		return decimal.Zero, err
	}

	start := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location())
	end := start.AddDate(0, 1, 0)

	sum := decimal.Zero
	for _, e := range earnings {
		if !e.CreatedAt.Before(start) && e.CreatedAt.Before(end) {
			sum = sum.Add(e.Amount)
		}
	}

	zap.L().Debug("Computed monthly earnings",
		zap.String("user_id", userId),
		zap.Time("month_start", start),
		zap.String("amount", sum.String()))
	return sum, nil
}

// ReconcileEarnings verifies that the stored totals match the sum of all earnings
func (s *SubledgerService) ReconcileEarnings(ctx context.Context, userId string) error {
	zap.L().Info("Reconciling earnings", zap.String("user_id", userId))

	var levelOneStr, levelTwoStr, totalStr string
	var version int64
	err := s.db.QueryRowContext(ctx, queryGetUserTotals, userId).Scan(&levelOneStr, &levelTwoStr, &totalStr, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
	}
	if err != nil {
		return fmt.Errorf("failed to get current totals: %w", err)
	}

	stored := make([]decimal.Decimal, 3)
	for i, str := range []string{levelOneStr, levelTwoStr, totalStr} {
		if stored[i], err = decimal.NewFromString(str); err != nil {
			return fmt.Errorf("failed to parse stored total '%s': %w", str, err)
		}
	}

	earnings, err := s.GetEarningsForUser(ctx, userId)
	if err != nil {
		return fmt.Errorf("failed to calculate totals from earnings: %w", err)
	}

	levelOne, levelTwo := decimal.Zero, decimal.Zero
	for _, e := range earnings {
		if e.Level == 1 {
			levelOne = levelOne.Add(e.Amount)
		} else {
			levelTwo = levelTwo.Add(e.Amount)
		}
	}
	total := levelOne.Add(levelTwo)

	// Exact decimal comparison, and the stored total must itself be consistent
	if !stored[0].Equal(levelOne) || !stored[1].Equal(levelTwo) || !stored[2].Equal(total) ||
		!stored[2].Equal(stored[0].Add(stored[1])) {
		zap.L().Error("Earnings reconciliation failed",
			zap.String("user_id", userId),
			zap.String("stored_level_one", stored[0].String()),
			zap.String("stored_level_two", stored[1].String()),
			zap.String("stored_total", stored[2].String()),
			zap.String("calculated_level_one", levelOne.String()),
			zap.String("calculated_level_two", levelTwo.String()),
			zap.String("calculated_total", total.String()))
		return fmt.Errorf("%w: stored=%s/%s/%s, calculated=%s/%s/%s", store.ErrReconciliationMismatch,
			stored[0].String(), stored[1].String(), stored[2].String(),
			levelOne.String(), levelTwo.String(), total.String())
	}

	zap.L().Info("Earnings reconciliation successful",
		zap.String("user_id", userId),
		zap.String("total", total.String()),
		zap.Int("earnings", len(earnings)))
	return nil
}

func (s *SubledgerService) queryEarnings(ctx context.Context, query string, key string) ([]models.Earning, error) {
	rows, err := s.db.QueryContext(ctx, query, key)
	if err != nil {
		zap.L().Error("Failed to get earnings", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to get earnings: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var earnings []models.Earning
	for rows.Next() {
		earning, err := scanEarning(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan earning: %w", err)
		}
		earnings = append(earnings, *earning)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during earning row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating earning rows: %w", err)
	}

	return earnings, nil
}
