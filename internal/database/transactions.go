package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"referral-ledger-go/internal/commission"
	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	accountTypePlatformExpense = "platform_commission_expense"
	accountTypeUserCommission  = "user_commission"
	platformCommissionAccount  = "platform"
)

// RecordPurchase persists a purchase that credits nobody
func (s *SubledgerService) RecordPurchase(ctx context.Context, params store.RecordPurchaseParams) (*models.Purchase, error) {
	applied, err := s.ApplyPurchase(ctx, store.ApplyPurchaseParams{Purchase: params})
	if err != nil {
		return nil, err
	}
	return &applied.Purchase, nil
}

// ApplyPurchase atomically records a purchase, its earnings, the beneficiaries'
// new totals, the journal entries and the live updates
func (s *SubledgerService) ApplyPurchase(ctx context.Context, params store.ApplyPurchaseParams) (*store.AppliedPurchase, error) {
	if err := commission.Validate(params.Purchase.Amount); err != nil {
		return nil, err
	}

	zap.L().Info("Applying purchase",
		zap.String("user_id", params.Purchase.UserId),
		zap.String("amount", params.Purchase.Amount.String()),
		zap.Int("credits", len(params.Credits)))

	createdAt := params.Purchase.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	// Start database transaction for atomicity
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	purchase := models.Purchase{
		Id:        uuid.New().String(),
		UserId:    params.Purchase.UserId,
		Amount:    params.Purchase.Amount,
		Profit:    commission.Compute(params.Purchase.Amount).Profit,
		Status:    models.PurchaseStatusCompleted,
		CreatedAt: createdAt,
	}

	_, err = tx.ExecContext(ctx, queryInsertPurchase,
		purchase.Id, purchase.UserId, purchase.Amount.String(), purchase.Profit.String(),
		purchase.Status, purchase.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, purchase.UserId)
		}
		return nil, fmt.Errorf("failed to insert purchase: %w", err)
	}

	applied := &store.AppliedPurchase{Purchase: purchase}

	// A beneficiary credited at both levels bumps its version once per credit.
	bumps := make(map[string]int64)
	for _, credit := range params.Credits {
		if credit.CreatedAt.IsZero() {
			credit.CreatedAt = createdAt
		}

		earning, update, err := s.applyCredit(ctx, tx, purchase.Id, credit, bumps)
		if err != nil {
			return nil, err
		}
		applied.Earnings = append(applied.Earnings, *earning)
		if update != nil {
			applied.Updates = append(applied.Updates, *update)
		}
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Purchase applied successfully",
		zap.String("purchase_id", purchase.Id),
		zap.String("user_id", purchase.UserId),
		zap.String("profit", purchase.Profit.String()),
		zap.Int("earnings", len(applied.Earnings)))

	return applied, nil
}

// RecordEarning appends a single earning and moves the beneficiary's totals
// with it. No live update is produced.
func (s *SubledgerService) RecordEarning(ctx context.Context, earning models.Earning) (*models.Earning, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	credit := store.CreditParams{
		UserId:     earning.UserId,
		FromUserId: earning.FromUserId,
		Level:      earning.Level,
		Amount:     earning.Amount,
		Percentage: earning.Percentage,
		CreatedAt:  earning.CreatedAt,
	}
	if credit.CreatedAt.IsZero() {
		credit.CreatedAt = time.Now().UTC()
	}

	recorded, _, err := s.applyCredit(ctx, tx, earning.PurchaseId, credit, make(map[string]int64))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return recorded, nil
}

func (s *SubledgerService) applyCredit(
	ctx context.Context,
	tx *sql.Tx,
	purchaseId string,
	credit store.CreditParams,
	bumps map[string]int64,
) (*models.Earning, *models.LiveUpdate, error) {
	if credit.Level != 1 && credit.Level != 2 {
		return nil, nil, fmt.Errorf("invalid earning level %d", credit.Level)
	}

	// Get current totals
	var levelOneStr, levelTwoStr, totalStr string
	var version int64
	err := tx.QueryRowContext(ctx, queryGetUserTotals, credit.UserId).Scan(&levelOneStr, &levelTwoStr, &totalStr, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, credit.UserId)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get current totals: %w", err)
	}

	if credit.ExpectVersion != 0 && version != credit.ExpectVersion+bumps[credit.UserId] {
		zap.L().Warn("Beneficiary totals changed since they were read",
			zap.String("user_id", credit.UserId),
			zap.Int64("expected_version", credit.ExpectVersion+bumps[credit.UserId]),
			zap.Int64("actual_version", version))
		return nil, nil, fmt.Errorf("totals update failed - %w", store.ErrConcurrentModification)
	}

	levelOne, err := decimal.NewFromString(levelOneStr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse level one earnings '%s': %w", levelOneStr, err)
	}
	levelTwo, err := decimal.NewFromString(levelTwoStr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse level two earnings '%s': %w", levelTwoStr, err)
	}
	total, err := decimal.NewFromString(totalStr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse total earnings '%s': %w", totalStr, err)
	}

	earning := &models.Earning{
		Id:         uuid.New().String(),
		UserId:     credit.UserId,
		FromUserId: credit.FromUserId,
		Amount:     credit.Amount,
		Percentage: credit.Percentage,
		Level:      credit.Level,
		PurchaseId: purchaseId,
		CreatedAt:  credit.CreatedAt,
	}

	_, err = tx.ExecContext(ctx, queryInsertEarning,
		earning.Id, earning.UserId, earning.FromUserId, earning.Amount.String(), earning.Percentage.String(),
		earning.Level, earning.PurchaseId, earning.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert earning: %w", err)
	}

	if credit.Level == 1 {
		levelOne = levelOne.Add(credit.Amount)
	} else {
		levelTwo = levelTwo.Add(credit.Amount)
	}
	total = total.Add(credit.Amount)

	// Update totals (with optimistic locking)
	result, err := tx.ExecContext(ctx, queryUpdateUserTotals,
		levelOne.String(), levelTwo.String(), total.String(), credit.CreatedAt, credit.UserId, version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update totals: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, nil, fmt.Errorf("totals update failed - %w", store.ErrConcurrentModification)
	}
	bumps[credit.UserId]++

	if err := s.addJournalEntries(ctx, tx, earning); err != nil {
		return nil, nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	zap.L().Debug("Credited beneficiary",
		zap.String("user_id", credit.UserId),
		zap.Int("level", credit.Level),
		zap.String("amount", credit.Amount.String()),
		zap.String("new_total", total.String()))

	if credit.UpdateMessage == "" {
		return earning, nil, nil
	}

	amount := credit.Amount
	update := &models.LiveUpdate{
		Id:        uuid.New().String(),
		UserId:    credit.UserId,
		Type:      models.UpdateTypeEarning,
		Message:   credit.UpdateMessage,
		Amount:    &amount,
		Timestamp: credit.CreatedAt,
	}
	if err := insertLiveUpdate(ctx, tx, update); err != nil {
		return nil, nil, err
	}

	return earning, update, nil
}

// addJournalEntries creates double-entry bookkeeping entries: the platform
// expense is debited and the beneficiary's commission account is credited
func (s *SubledgerService) addJournalEntries(ctx context.Context, tx *sql.Tx, earning *models.Earning) error {
	journalEntries := []struct {
		accountType  string
		accountId    string
		debitAmount  decimal.Decimal
		creditAmount decimal.Decimal
	}{
		{accountTypePlatformExpense, platformCommissionAccount, earning.Amount, decimal.Zero},
		{fmt.Sprintf("%s_%d", accountTypeUserCommission, earning.Level), earning.UserId, decimal.Zero, earning.Amount},
	}

	for _, entry := range journalEntries {
		entryId := uuid.New().String()
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			entryId, earning.Id, entry.accountType, entry.accountId,
			entry.debitAmount.String(), entry.creditAmount.String(), earning.CreatedAt)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetJournalEntries returns the double-entry rows written for an earning
func (s *SubledgerService) GetJournalEntries(ctx context.Context, earningId string) ([]models.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryGetJournalEntriesForEarning, earningId)
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entries: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var entries []models.JournalEntry
	for rows.Next() {
		var entry models.JournalEntry
		var debitStr, creditStr string
		err := rows.Scan(&entry.Id, &entry.EarningId, &entry.AccountType, &entry.AccountId,
			&debitStr, &creditStr, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}

		entry.DebitAmount, err = decimal.NewFromString(debitStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse debit amount '%s': %w", debitStr, err)
		}
		entry.CreditAmount, err = decimal.NewFromString(creditStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credit amount '%s': %w", creditStr, err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal entry rows: %w", err)
	}

	return entries, nil
}

// GetPurchaseById returns nil, nil for an unknown id
func (s *SubledgerService) GetPurchaseById(ctx context.Context, purchaseId string) (*models.Purchase, error) {
	purchase, err := scanPurchase(s.db.QueryRowContext(ctx, queryGetPurchaseById, purchaseId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return purchase, nil
}

func (s *SubledgerService) GetPurchasesForUser(ctx context.Context, userId string) ([]models.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, queryGetPurchasesForUser, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchases: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var purchases []models.Purchase
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, *purchase)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during purchase row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating purchase rows: %w", err)
	}

	return purchases, nil
}
