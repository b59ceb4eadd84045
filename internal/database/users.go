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
	"errors"
	"fmt"
	"strings"
	"time"

	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	zap.L().Debug("Querying active users")

	rows, err := s.db.QueryContext(ctx, queryGetActiveUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	users, err := collectUsers(rows)
	if err != nil {
		return nil, err
	}

	links, err := s.referralLinks(ctx, queryGetAllReferralLinks)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].DirectReferrals = childIds(links, users[i].Id)
	}

	zap.L().Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	zap.L().Debug("Querying user by ID", zap.String("user_id", userId))
	return s.getUser(ctx, queryGetUserById, userId)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	zap.L().Debug("Querying user by email", zap.String("email", email))
	return s.getUser(ctx, queryGetUserByEmail, email)
}

func (s *Service) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	zap.L().Debug("Querying user by referral code", zap.String("referral_code", code))
	return s.getUser(ctx, queryGetUserByReferralCode, code)
}

// GetUsersByIds returns the known users among userIds, in the order given
func (s *Service) GetUsersByIds(ctx context.Context, userIds []string) ([]models.User, error) {
	if len(userIds) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(userIds)), ",")
	args := make([]any, len(userIds))
	for i, id := range userIds {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query users by ID: %w", err)
	}
	found, err := collectUsers(rows)
	if err != nil {
		return nil, err
	}

	links, err := s.referralLinks(ctx,
		"SELECT parent_id, child_id FROM referral_links WHERE parent_id IN ("+placeholders+") ORDER BY parent_id, position",
		args...)
	if err != nil {
		return nil, err
	}

	byId := make(map[string]models.User, len(found))
	for _, user := range found {
		user.DirectReferrals = childIds(links, user.Id)
		byId[user.Id] = user
	}

	users := make([]models.User, 0, len(found))
	for _, id := range userIds {
		if user, ok := byId[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

// CreateUser inserts a user and, when a parent is given, appends the new id to
// the parent's direct referrals in the same transaction
func (s *Service) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	zap.L().Info("Creating user",
		zap.String("name", params.Name),
		zap.String("email", params.Email),
		zap.String("referral_code", params.ReferralCode),
		zap.String("parent_referral_code", params.ParentReferralCode))

	joinedAt := params.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingId string
	err = tx.QueryRowContext(ctx, queryCheckReferralCode, params.ReferralCode).Scan(&existingId)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrDuplicateCode, params.ReferralCode)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check referral code: %w", err)
	}

	err = tx.QueryRowContext(ctx, queryCheckEmail, params.Email).Scan(&existingId)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrDuplicateEmail, params.Email)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	userId := uuid.New().String()
	_, err = tx.ExecContext(ctx, queryInsertUser,
		userId, params.Name, params.Email, params.ReferralCode, params.ParentReferralCode, params.Level,
		joinedAt, joinedAt)
	if err != nil {
		zap.L().Error("Failed to insert user", zap.String("email", params.Email), zap.Error(err))
		return nil, mapConstraintError(err)
	}

	if params.ParentId != "" {
		if _, err := tx.ExecContext(ctx, queryInsertReferralLink, params.ParentId, userId, params.ParentId); err != nil {
			if isForeignKeyViolation(err) {
				return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, params.ParentId)
			}
			return nil, fmt.Errorf("unable to link referral: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, mapConstraintError(err)
	}

	zap.L().Info("User created successfully",
		zap.String("id", userId),
		zap.String("name", params.Name),
		zap.Int("level", params.Level))

	return &models.User{
		Id:                 userId,
		Name:               params.Name,
		Email:              params.Email,
		ReferralCode:       params.ReferralCode,
		ParentReferralCode: params.ParentReferralCode,
		Level:              params.Level,
		DirectReferrals:    []string{},
		LevelOneEarnings:   decimal.Zero,
		LevelTwoEarnings:   decimal.Zero,
		TotalEarnings:      decimal.Zero,
		Version:            1,
		JoinedAt:           joinedAt,
		UpdatedAt:          joinedAt,
		IsActive:           true,
	}, nil
}

func (s *Service) getUser(ctx context.Context, query, key string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, key)
		}
		zap.L().Error("Failed to query user", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("unable to query user: %w", err)
	}

	links, err := s.referralLinks(ctx, queryGetDirectReferralIds, user.Id)
	if err != nil {
		return nil, err
	}
	user.DirectReferrals = childIds(links, user.Id)

	zap.L().Debug("Retrieved user", zap.String("user_id", user.Id), zap.String("name", user.Name))
	return user, nil
}

// referralLinks runs a link query and groups child ids by parent, keeping
// their position order
func (s *Service) referralLinks(ctx context.Context, query string, args ...any) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query referral links: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	links := make(map[string][]string)
	for rows.Next() {
		var parentId, childId string
		if err := rows.Scan(&parentId, &childId); err != nil {
			return nil, fmt.Errorf("unable to scan referral link: %w", err)
		}
		links[parentId] = append(links[parentId], childId)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referral link rows: %w", err)
	}
	return links, nil
}

func childIds(links map[string][]string, parentId string) []string {
	if ids, ok := links[parentId]; ok {
		return ids
	}
	return []string{}
}

func collectUsers(rows *sql.Rows) ([]models.User, error) {
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			zap.L().Error("Failed to scan user row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, *user)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during user row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var levelOneStr, levelTwoStr, totalStr string
	err := row.Scan(&user.Id, &user.Name, &user.Email, &user.ReferralCode, &user.ParentReferralCode, &user.Level,
		&levelOneStr, &levelTwoStr, &totalStr, &user.Version, &user.IsActive,
		&user.JoinedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if user.LevelOneEarnings, err = decimal.NewFromString(levelOneStr); err != nil {
		return nil, fmt.Errorf("failed to parse level one earnings '%s': %w", levelOneStr, err)
	}
	if user.LevelTwoEarnings, err = decimal.NewFromString(levelTwoStr); err != nil {
		return nil, fmt.Errorf("failed to parse level two earnings '%s': %w", levelTwoStr, err)
	}
	if user.TotalEarnings, err = decimal.NewFromString(totalStr); err != nil {
		return nil, fmt.Errorf("failed to parse total earnings '%s': %w", totalStr, err)
	}
	return &user, nil
}

// mapConstraintError turns unique violations on users into store sentinels
func mapConstraintError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		switch {
		case strings.Contains(sqliteErr.Error(), "users.referral_code"):
			return fmt.Errorf("%w: %v", store.ErrDuplicateCode, err)
		case strings.Contains(sqliteErr.Error(), "users.email"):
			return fmt.Errorf("%w: %v", store.ErrDuplicateEmail, err)
		}
	}
	return fmt.Errorf("unable to insert user: %w", err)
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
