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

const userColumns = `id, name, email, referral_code, parent_referral_code, level,
		       level_one_earnings, level_two_earnings, total_earnings, version, active,
		       joined_at, updated_at`

const (
	// User queries
	queryGetActiveUsers = `
		SELECT ` + userColumns + `
		FROM users
		WHERE active = 1
		ORDER BY joined_at, rowid`

	queryCountUsers = `
		SELECT COUNT(*) FROM users`

	queryInsertUser = `
		INSERT INTO users (
			id, name, email, referral_code, parent_referral_code, level,
			level_one_earnings, level_two_earnings, total_earnings, version, active,
			joined_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, '0', '0', '0', 1, 1, ?, ?)`

	queryGetUserById = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = ?`

	queryGetUserByEmail = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = ?`

	queryGetUserByReferralCode = `
		SELECT ` + userColumns + `
		FROM users
		WHERE referral_code = ?`

	queryCheckReferralCode = `
		SELECT id FROM users WHERE referral_code = ? LIMIT 1`

	queryCheckEmail = `
		SELECT id FROM users WHERE email = ? LIMIT 1`

	// Referral link queries
	queryInsertReferralLink = `
		INSERT INTO referral_links (parent_id, child_id, position)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM referral_links WHERE parent_id = ?))`

	queryGetDirectReferralIds = `
		SELECT parent_id, child_id
		FROM referral_links
		WHERE parent_id = ?
		ORDER BY position`

	queryGetAllReferralLinks = `
		SELECT parent_id, child_id
		FROM referral_links
		ORDER BY parent_id, position`

	// Earning total queries
	queryGetUserTotals = `
		SELECT level_one_earnings, level_two_earnings, total_earnings, version
		FROM users
		WHERE id = ?`

	queryUpdateUserTotals = `
		UPDATE users
		SET level_one_earnings = ?, level_two_earnings = ?, total_earnings = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	// Purchase queries
	queryInsertPurchase = `
		INSERT INTO purchases (id, user_id, amount, profit, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetPurchaseById = `
		SELECT id, user_id, amount, profit, status, created_at
		FROM purchases
		WHERE id = ?`

	queryGetPurchasesForUser = `
		SELECT id, user_id, amount, profit, status, created_at
		FROM purchases
		WHERE user_id = ?
		ORDER BY rowid`

	// Earning queries
	queryInsertEarning = `
		INSERT INTO earnings (id, user_id, from_user_id, amount, percentage, level, purchase_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetEarningsForUser = `
		SELECT id, user_id, from_user_id, amount, percentage, level, purchase_id, created_at
		FROM earnings
		WHERE user_id = ?
		ORDER BY rowid`

	queryGetEarningsForPurchase = `
		SELECT id, user_id, from_user_id, amount, percentage, level, purchase_id, created_at
		FROM earnings
		WHERE purchase_id = ?
		ORDER BY rowid`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, earning_id, account_type, account_id, debit_amount, credit_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetJournalEntriesForEarning = `
		SELECT id, earning_id, account_type, account_id, debit_amount, credit_amount, created_at
		FROM journal_entries
		WHERE earning_id = ?
		ORDER BY rowid`

	// Live update queries
	queryInsertLiveUpdate = `
		INSERT INTO live_updates (id, user_id, type, message, amount, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?, 0)`

	queryGetUnreadUpdates = `
		SELECT id, user_id, type, message, amount, created_at, is_read
		FROM live_updates
		WHERE user_id = ? AND is_read = 0
		ORDER BY rowid
		LIMIT ?`

	// An unknown afterId starts from the beginning of the feed
	queryGetUnreadUpdatesAfter = `
		SELECT id, user_id, type, message, amount, created_at, is_read
		FROM live_updates
		WHERE user_id = ? AND is_read = 0
		  AND rowid > COALESCE((SELECT rowid FROM live_updates WHERE id = ?), 0)
		ORDER BY rowid
		LIMIT ?`

	queryMarkUpdateRead = `
		UPDATE live_updates SET is_read = 1 WHERE id = ? AND is_read = 0`

	queryMarkAllUpdatesRead = `
		UPDATE live_updates SET is_read = 1 WHERE user_id = ? AND is_read = 0`
)
