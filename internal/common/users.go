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

package common

import (
	"context"
	"errors"
	"fmt"

	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/store"

	"go.uber.org/zap"
)

// UserInfo represents simplified user information for command-line utilities
type UserInfo struct {
	Id           string
	Name         string
	Email        string
	ReferralCode string
	Level        int
}

func toUserInfo(user models.User) UserInfo {
	return UserInfo{
		Id:           user.Id,
		Name:         user.Name,
		Email:        user.Email,
		ReferralCode: user.ReferralCode,
		Level:        user.Level,
	}
}

// ResolveUser finds a single user by email, referral code or id, in that
// order of precedence
func ResolveUser(ctx context.Context, users store.ReferralStore, email, code, id string) (*models.User, error) {
	switch {
	case email != "":
		return users.GetUserByEmail(ctx, email)
	case code != "":
		user, err := users.GetUserByReferralCode(ctx, code)
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", store.ErrReferralCodeNotFound, code)
		}
		return user, err
	case id != "":
		return users.GetUserById(ctx, id)
	default:
		return nil, fmt.Errorf("%w: one of email, code or id is required", store.ErrInvalidInput)
	}
}

// InitializeUsers retrieves users based on an optional email filter.
// If emailFilter is provided, returns a single user with that email.
// If emailFilter is empty, returns all users.
func InitializeUsers(ctx context.Context, dbService store.ReferralStore, emailFilter string, logger *zap.Logger) ([]UserInfo, error) {
	var users []UserInfo

	if emailFilter != "" {
		logger.Info("Looking up user by email", zap.String("email", emailFilter))
		user, err := dbService.GetUserByEmail(ctx, emailFilter)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		users = append(users, toUserInfo(*user))
	} else {
		allUsers, err := dbService.GetUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get users: %w", err)
		}
		for _, u := range allUsers {
			users = append(users, toUserInfo(u))
		}
	}

	logger.Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}
