package database

import (
	"context"
	"database/sql"
	"fmt"

	"referral-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func insertLiveUpdate(ctx context.Context, tx *sql.Tx, update *models.LiveUpdate) error {
	var amount sql.NullString
	if update.Amount != nil {
		amount = sql.NullString{String: update.Amount.String(), Valid: true}
	}

	_, err := tx.ExecContext(ctx, queryInsertLiveUpdate,
		update.Id, update.UserId, update.Type, update.Message, amount, update.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert live update: %w", err)
	}
	return nil
}

// GetUnreadUpdates returns up to limit unread updates for a user, oldest first
func (s *Service) GetUnreadUpdates(ctx context.Context, userId string, limit int) ([]models.LiveUpdate, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUnreadUpdates, userId, limit)
	if err != nil {
		zap.L().Error("Failed to get unread updates", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get unread updates: %w", err)
	}
	return scanLiveUpdates(rows)
}

// GetUnreadUpdatesAfter pages the unread feed past afterId, oldest first
func (s *Service) GetUnreadUpdatesAfter(ctx context.Context, userId, afterId string, limit int) ([]models.LiveUpdate, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUnreadUpdatesAfter, userId, afterId, limit)
	if err != nil {
		zap.L().Error("Failed to get unread updates",
			zap.String("user_id", userId),
			zap.String("after_id", afterId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get unread updates: %w", err)
	}
	return scanLiveUpdates(rows)
}

func scanLiveUpdates(rows *sql.Rows) ([]models.LiveUpdate, error) {
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var updates []models.LiveUpdate
	for rows.Next() {
		var update models.LiveUpdate
		var amount sql.NullString
		err := rows.Scan(&update.Id, &update.UserId, &update.Type, &update.Message, &amount,
			&update.Timestamp, &update.Read)
		if err != nil {
			return nil, fmt.Errorf("failed to scan live update: %w", err)
		}

		if amount.Valid {
			parsed, err := decimal.NewFromString(amount.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse update amount '%s': %w", amount.String, err)
			}
			update.Amount = &parsed
		}

		updates = append(updates, update)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating live update rows: %w", err)
	}

	return updates, nil
}

// MarkUpdateRead is idempotent; an unknown id changes nothing
func (s *Service) MarkUpdateRead(ctx context.Context, updateId string) error {
	result, err := s.db.ExecContext(ctx, queryMarkUpdateRead, updateId)
	if err != nil {
		return fmt.Errorf("failed to mark update read: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		zap.L().Debug("Update already read or unknown", zap.String("update_id", updateId))
	}
	return nil
}

func (s *Service) MarkAllUpdatesRead(ctx context.Context, userId string) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryMarkAllUpdatesRead, userId)
	if err != nil {
		return 0, fmt.Errorf("failed to mark updates read: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}

	zap.L().Info("Marked updates read", zap.String("user_id", userId), zap.Int64("count", n))
	return n, nil
}
