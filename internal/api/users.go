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
	"errors"
	"fmt"
	"regexp"
	"strings"

	"referral-ledger-go/internal/graph"
	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/monitoring"
	"referral-ledger-go/internal/store"

	"go.uber.org/zap"
)

var (
	emailRegex        = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	referralCodeRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email cannot be empty", store.ErrInvalidInput)
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("%w: invalid email format: %s", store.ErrInvalidInput, email)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", store.ErrInvalidInput)
	}
	if len(name) < 2 {
		return fmt.Errorf("%w: name must be at least 2 characters", store.ErrInvalidInput)
	}
	return nil
}

func validateReferralCode(code string) error {
	if !referralCodeRegex.MatchString(code) {
		return fmt.Errorf("%w: referral code must be 1-64 letters, digits, '-' or '_': %q", store.ErrInvalidInput, code)
	}
	return nil
}

// RegisterUser adds a user to the graph. A parent code, when given, must
// belong to an existing user and must not lead back to the new code.
func (s *ReferralService) RegisterUser(ctx context.Context, params models.RegisterUserParams) (*models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.TrimSpace(params.Email)
	params.ReferralCode = strings.TrimSpace(params.ReferralCode)
	params.ParentReferralCode = strings.TrimSpace(params.ParentReferralCode)

	if err := validateName(params.Name); err != nil {
		return nil, err
	}
	if err := validateEmail(params.Email); err != nil {
		return nil, err
	}
	if err := validateReferralCode(params.ReferralCode); err != nil {
		return nil, err
	}

	create := store.CreateUserParams{
		Name:         params.Name,
		Email:        params.Email,
		ReferralCode: params.ReferralCode,
		JoinedAt:     s.now(),
	}

	if params.ParentReferralCode != "" {
		if params.ParentReferralCode == params.ReferralCode {
			return nil, fmt.Errorf("%w: %s cannot refer itself", store.ErrCyclicReferral, params.ReferralCode)
		}

		chain, err := s.graph.Ancestors(ctx, params.ParentReferralCode, graph.MaxAncestorWalk)
		if err != nil {
			zap.L().Error("Failed to resolve parent chain",
				zap.String("parent_referral_code", params.ParentReferralCode),
				zap.Error(err))
			return nil, fmt.Errorf("failed to resolve parent: %w", err)
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("%w: %s", store.ErrReferralCodeNotFound, params.ParentReferralCode)
		}
		for _, ancestor := range chain {
			if ancestor.ReferralCode == params.ReferralCode {
				return nil, fmt.Errorf("%w: %s is an ancestor of %s", store.ErrCyclicReferral,
					params.ReferralCode, params.ParentReferralCode)
			}
		}

		parent := chain[0]
		create.ParentReferralCode = parent.ReferralCode
		create.ParentId = parent.Id
		create.Level = parent.Level + 1
	}

	user, err := s.store.CreateUser(ctx, create)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateCode) || errors.Is(err, store.ErrDuplicateEmail) ||
			errors.Is(err, store.ErrUserNotFound) {
			return nil, err
		}
		zap.L().Error("Failed to create user", zap.String("email", params.Email), zap.Error(err))
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	monitoring.UsersRegisteredTotal.Inc()
	zap.L().Info("User registered",
		zap.String("user_id", user.Id),
		zap.String("referral_code", user.ReferralCode),
		zap.String("parent_referral_code", user.ParentReferralCode),
		zap.Int("level", user.Level))
	return user, nil
}

// GetUser returns ErrUserNotFound for an unknown id
func (s *ReferralService) GetUser(ctx context.Context, userId string) (*models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if userId == "" {
		return nil, fmt.Errorf("%w: user_id is required", store.ErrInvalidInput)
	}
	return s.store.GetUserById(ctx, userId)
}

func (s *ReferralService) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.store.GetUserByReferralCode(ctx, code)
}

func (s *ReferralService) GetUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.store.GetUsers(ctx)
}

// GetUserReferrals returns the direct referrals of a user, empty for an
// unknown id
func (s *ReferralService) GetUserReferrals(ctx context.Context, userId string) ([]models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.graph.DirectChildren(ctx, userId)
}

// GetReferralTree returns nil for an unknown root
func (s *ReferralService) GetReferralTree(ctx context.Context, userId string, depth int) (*models.ReferralNode, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.graph.BuildSubtree(ctx, userId, depth)
}
