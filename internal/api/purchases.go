/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"referral-ledger-go/internal/commission"
	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/monitoring"
	"referral-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProcessPurchase records a purchase and credits the buyer's sponsor at
// level 1 and the sponsor's sponsor at level 2. Everything is committed
// together; on any error nothing is visible.
func (s *ReferralService) ProcessPurchase(ctx context.Context, userId string, amount decimal.Decimal) (*models.PurchaseResult, error) {
	start := time.Now()
	defer func() {
		monitoring.PurchaseDurationHistogram.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := commission.Validate(amount); err != nil {
		monitoring.PurchasesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	buyer, err := s.store.GetUserById(ctx, userId)
	if err != nil {
		monitoring.PurchasesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	levelOne, err := s.graph.ResolveParent(ctx, buyer)
	if err != nil {
		return nil, s.purchaseFailed("resolve level one beneficiary", userId, err)
	}
	var levelTwo *models.User
	if levelOne != nil {
		if levelTwo, err = s.graph.ResolveParent(ctx, levelOne); err != nil {
			return nil, s.purchaseFailed("resolve level two beneficiary", userId, err)
		}
	}

	var beneficiaries []string
	for _, b := range []*models.User{levelOne, levelTwo} {
		if b != nil {
			beneficiaries = append(beneficiaries, b.Id)
		}
	}
	unlock := s.locks.lock(beneficiaries...)
	defer unlock()

	breakdown := commission.Compute(amount)
	now := s.now()

	var credits []store.CreditParams
	if levelOne != nil {
		credit, err := s.creditFor(ctx, levelOne.Id, buyer, 1, breakdown, now)
		if err != nil {
			return nil, s.purchaseFailed("read level one beneficiary", userId, err)
		}
		credits = append(credits, credit)
	}
	if levelTwo != nil {
		credit, err := s.creditFor(ctx, levelTwo.Id, buyer, 2, breakdown, now)
		if err != nil {
			return nil, s.purchaseFailed("read level two beneficiary", userId, err)
		}
		credits = append(credits, credit)
	}

	applied, err := s.store.ApplyPurchase(ctx, store.ApplyPurchaseParams{
		Purchase: store.RecordPurchaseParams{
			UserId:    buyer.Id,
			Amount:    amount,
			CreatedAt: now,
		},
		Credits: credits,
	})
	if err != nil {
		return nil, s.purchaseFailed("apply purchase", userId, err)
	}

	monitoring.PurchasesTotal.WithLabelValues("completed").Inc()
	for _, earning := range applied.Earnings {
		level := strconv.Itoa(earning.Level)
		monitoring.EarningsCreditedTotal.WithLabelValues(level).Inc()
		monitoring.CommissionAmountTotal.WithLabelValues(level).Add(earning.Amount.InexactFloat64())
	}

	s.afterCommit(ctx, applied)

	zap.L().Info("Purchase processed",
		zap.String("purchase_id", applied.Purchase.Id),
		zap.String("buyer_id", buyer.Id),
		zap.String("amount", amount.String()),
		zap.String("profit", breakdown.Profit.String()),
		zap.Int("earnings", len(applied.Earnings)))

	earnings := applied.Earnings
	if earnings == nil {
		earnings = []models.Earning{}
	}
	return &models.PurchaseResult{Purchase: applied.Purchase, Earnings: earnings}, nil
}

// creditFor re-reads the beneficiary under its lock so the store can detect
// writers outside this process
func (s *ReferralService) creditFor(
	ctx context.Context,
	beneficiaryId string,
	buyer *models.User,
	level int,
	breakdown commission.Breakdown,
	now time.Time,
) (store.CreditParams, error) {
	beneficiary, err := s.store.GetUserById(ctx, beneficiaryId)
	if err != nil {
		return store.CreditParams{}, err
	}

	amount, percentage := breakdown.ForLevel(level)
	message := fmt.Sprintf("You earned %s from %s's purchase", amount.StringFixed(2), buyer.Name)
	if level == 2 {
		message = fmt.Sprintf("You earned %s from Level 2 referral", amount.StringFixed(2))
	}

	return store.CreditParams{
		UserId:        beneficiary.Id,
		FromUserId:    buyer.Id,
		Level:         level,
		Amount:        amount,
		Percentage:    percentage,
		ExpectVersion: beneficiary.Version,
		UpdateMessage: message,
		CreatedAt:     now,
	}, nil
}

// afterCommit fans the committed purchase out to the optional push channel
// and ledger mirror. The local ledger stays authoritative.
func (s *ReferralService) afterCommit(ctx context.Context, applied *store.AppliedPurchase) {
	if s.publisher != nil {
		for _, update := range applied.Updates {
			s.publisher.Publish(update)
		}
	}

	if s.mirror == nil {
		return
	}
	for _, earning := range applied.Earnings {
		if err := s.mirror.PostEarning(ctx, earning); err != nil {
			monitoring.MirrorFailuresTotal.Inc()
			zap.L().Error("Failed to mirror earning",
				zap.String("earning_id", earning.Id),
				zap.String("user_id", earning.UserId),
				zap.Error(err))
		}
	}
}

func (s *ReferralService) purchaseFailed(step, userId string, err error) error {
	monitoring.PurchasesTotal.WithLabelValues("failed").Inc()
	zap.L().Error("Purchase failed",
		zap.String("step", step),
		zap.String("user_id", userId),
		zap.Error(err))
	return fmt.Errorf("failed to %s: %w", step, err)
}

// GetEarnings returns a user's ledger entries in insertion order
func (s *ReferralService) GetEarnings(ctx context.Context, userId string) ([]models.Earning, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.GetUserById(ctx, userId); err != nil {
		return nil, err
	}
	earnings, err := s.store.GetEarningsForUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	if earnings == nil {
		earnings = []models.Earning{}
	}
	return earnings, nil
}

// GetPurchases returns a user's purchases in insertion order
func (s *ReferralService) GetPurchases(ctx context.Context, userId string) ([]models.Purchase, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.GetUserById(ctx, userId); err != nil {
		return nil, err
	}
	purchases, err := s.store.GetPurchasesForUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	if purchases == nil {
		purchases = []models.Purchase{}
	}
	return purchases, nil
}

// GetPurchase returns one purchase with the earnings it caused and the
// journal rows behind each earning
func (s *ReferralService) GetPurchase(ctx context.Context, purchaseId string) (*models.PurchaseDetail, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	purchase, err := s.store.GetPurchaseById(ctx, purchaseId)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrPurchaseNotFound, purchaseId)
	}

	earnings, err := s.store.GetEarningsForPurchase(ctx, purchaseId)
	if err != nil {
		return nil, err
	}
	detail := &models.PurchaseDetail{
		Purchase: *purchase,
		Earnings: []models.Earning{},
		Journal:  []models.JournalEntry{},
	}
	for _, earning := range earnings {
		entries, err := s.store.GetJournalEntries(ctx, earning.Id)
		if err != nil {
			return nil, fmt.Errorf("failed to read journal for earning %s: %w", earning.Id, err)
		}
		detail.Earnings = append(detail.Earnings, earning)
		detail.Journal = append(detail.Journal, entries...)
	}
	return detail, nil
}

// Reconcile checks a user's stored totals against their earnings and, when a
// mirror is configured, against the external ledger
func (s *ReferralService) Reconcile(ctx context.Context, userId string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.ReconcileUserEarnings(ctx, userId); err != nil {
		return err
	}
	if s.mirror == nil {
		return nil
	}

	user, err := s.store.GetUserById(ctx, userId)
	if err != nil {
		return err
	}
	mirrored, err := s.mirror.GetMirroredEarnings(ctx, userId)
	if err != nil {
		return fmt.Errorf("failed to read mirrored earnings: %w", err)
	}
	if !mirrored.Equal(user.TotalEarnings) {
		return fmt.Errorf("%w: local=%s, mirror=%s", store.ErrReconciliationMismatch,
			user.TotalEarnings.String(), mirrored.String())
	}
	return nil
}

// ResyncMirror re-posts every earning of a user to the mirror. Earnings the
// mirror already holds are skipped by reference.
func (s *ReferralService) ResyncMirror(ctx context.Context, userId string) (int, error) {
	if s.mirror == nil {
		return 0, fmt.Errorf("no ledger mirror configured")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.GetUserById(ctx, userId); err != nil {
		return 0, err
	}
	earnings, err := s.store.GetEarningsForUser(ctx, userId)
	if err != nil {
		return 0, err
	}
	for _, earning := range earnings {
		if err := s.mirror.PostEarning(ctx, earning); err != nil {
			return 0, fmt.Errorf("failed to post earning %s: %w", earning.Id, err)
		}
	}
	return len(earnings), nil
}
