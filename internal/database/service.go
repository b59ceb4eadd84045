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

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.ReferralStore.
var _ store.ReferralStore = (*Service)(nil)

type Service struct {
	db        *sql.DB
	subledger *SubledgerService
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}
	if cfg.BusyTimeout < 0 {
		return nil, fmt.Errorf("busy timeout cannot be negative, got %v", cfg.BusyTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dataSourceName(cfg))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	subledger := NewSubledgerService(db)
	service := &Service{db: db, subledger: subledger}
	if err := service.initSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	// Purchases, earnings and journal entries reference users
	if err := subledger.InitSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize subledger schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func dataSourceName(cfg models.DatabaseConfig) string {
	busy := cfg.BusyTimeout
	if busy == 0 {
		busy = 5 * time.Second
	}
	return fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=%d&_foreign_keys=1",
		cfg.Path, busy.Milliseconds())
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema(ctx context.Context) error {
	schema := `
	-- Users with their running earning totals (hot data)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		referral_code TEXT NOT NULL UNIQUE,
		parent_referral_code TEXT NOT NULL DEFAULT '',
		level INTEGER NOT NULL DEFAULT 0,
		level_one_earnings TEXT NOT NULL DEFAULT '0',
		level_two_earnings TEXT NOT NULL DEFAULT '0',
		total_earnings TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		active BOOLEAN NOT NULL DEFAULT 1,
		joined_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_parent_code ON users(parent_referral_code);
	CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);

	-- Ordered direct referrals of each sponsor
	CREATE TABLE IF NOT EXISTS referral_links (
		parent_id TEXT NOT NULL REFERENCES users(id),
		child_id TEXT PRIMARY KEY REFERENCES users(id),
		position INTEGER NOT NULL,
		UNIQUE(parent_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_referral_links_parent ON referral_links(parent_id, position);

	-- Per-user notification feed
	CREATE TABLE IF NOT EXISTS live_updates (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		amount TEXT,
		created_at TIMESTAMP NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_live_updates_user_unread ON live_updates(user_id, is_read);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Service) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, queryCountUsers).Scan(&count); err != nil {
		return 0, fmt.Errorf("unable to count users: %w", err)
	}
	return count, nil
}

// Subledger convenience methods

func (s *Service) RecordPurchase(ctx context.Context, params store.RecordPurchaseParams) (*models.Purchase, error) {
	return s.subledger.RecordPurchase(ctx, params)
}

func (s *Service) RecordEarning(ctx context.Context, earning models.Earning) (*models.Earning, error) {
	return s.subledger.RecordEarning(ctx, earning)
}

func (s *Service) ApplyPurchase(ctx context.Context, params store.ApplyPurchaseParams) (*store.AppliedPurchase, error) {
	return s.subledger.ApplyPurchase(ctx, params)
}

func (s *Service) GetPurchaseById(ctx context.Context, purchaseId string) (*models.Purchase, error) {
	return s.subledger.GetPurchaseById(ctx, purchaseId)
}

func (s *Service) GetPurchasesForUser(ctx context.Context, userId string) ([]models.Purchase, error) {
	return s.subledger.GetPurchasesForUser(ctx, userId)
}

func (s *Service) GetEarningsForUser(ctx context.Context, userId string) ([]models.Earning, error) {
	return s.subledger.GetEarningsForUser(ctx, userId)
}

func (s *Service) GetEarningsForPurchase(ctx context.Context, purchaseId string) ([]models.Earning, error) {
	return s.subledger.GetEarningsForPurchase(ctx, purchaseId)
}

func (s *Service) GetMonthlyEarnings(ctx context.Context, userId string, asOf time.Time) (decimal.Decimal, error) {
	return s.subledger.GetMonthlyEarnings(ctx, userId, asOf)
}

func (s *Service) ReconcileUserEarnings(ctx context.Context, userId string) error {
	return s.subledger.ReconcileEarnings(ctx, userId)
}

func (s *Service) GetJournalEntries(ctx context.Context, earningId string) ([]models.JournalEntry, error) {
	return s.subledger.GetJournalEntries(ctx, earningId)
}
