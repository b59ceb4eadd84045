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

	"referral-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// SubledgerService handles purchase and earning ledger operations
type SubledgerService struct {
	db *sql.DB
}

func NewSubledgerService(db *sql.DB) *SubledgerService {
	return &SubledgerService{
		db: db,
	}
}

func (s *SubledgerService) InitSchema(ctx context.Context) error {
	schema := `
	-- Purchases (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		amount TEXT NOT NULL,
		profit TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'completed',
		created_at TIMESTAMP NOT NULL
	);

	-- Earnings (Append-only - one row per credited beneficiary)
	CREATE TABLE IF NOT EXISTS earnings (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		from_user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		percentage TEXT NOT NULL,
		level INTEGER NOT NULL CHECK (level IN (1, 2)),
		purchase_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_user_id ON purchases(user_id);
	CREATE INDEX IF NOT EXISTS idx_earnings_user_id ON earnings(user_id);
	CREATE INDEX IF NOT EXISTS idx_earnings_purchase_id ON earnings(purchase_id);
	CREATE INDEX IF NOT EXISTS idx_earnings_created_at ON earnings(created_at);

	-- Journal Entries for Double-Entry Bookkeeping
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		earning_id TEXT NOT NULL REFERENCES earnings(id),
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		debit_amount TEXT NOT NULL DEFAULT '0',
		credit_amount TEXT NOT NULL DEFAULT '0',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_earning_id ON journal_entries(earning_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurchase(row rowScanner) (*models.Purchase, error) {
	var p models.Purchase
	var amountStr, profitStr string
	if err := row.Scan(&p.Id, &p.UserId, &amountStr, &profitStr, &p.Status, &p.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if p.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	if p.Profit, err = decimal.NewFromString(profitStr); err != nil {
		return nil, fmt.Errorf("failed to parse profit '%s': %w", profitStr, err)
	}
	return &p, nil
}

func scanEarning(row rowScanner) (*models.Earning, error) {
	var e models.Earning
	var amountStr, percentageStr string
	if err := row.Scan(&e.Id, &e.UserId, &e.FromUserId, &amountStr, &percentageStr,
		&e.Level, &e.PurchaseId, &e.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if e.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	if e.Percentage, err = decimal.NewFromString(percentageStr); err != nil {
		return nil, fmt.Errorf("failed to parse percentage '%s': %w", percentageStr, err)
	}
	return &e, nil
}
