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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"referral-ledger-go/internal/common"
	"referral-ledger-go/internal/config"
	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	name := flag.String("name", "", "User's full name (required)")
	email := flag.String("email", "", "User's email address (required)")
	code := flag.String("code", "", "Referral code for the new user (required)")
	parent := flag.String("parent", "", "Referral code of the sponsor (optional)")
	flag.Parse()

	if *name == "" || *email == "" || *code == "" {
		fmt.Println("Usage: adduser -name \"Alice Johnson\" -email alice@example.com -code ALICE2024 [-parent JOHN2024]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Logging.Development)
	defer loggerCleanup()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	user, err := services.Referrals.RegisterUser(ctx, models.RegisterUserParams{
		Name:               *name,
		Email:              *email,
		ReferralCode:       *code,
		ParentReferralCode: *parent,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateCode), errors.Is(err, store.ErrDuplicateEmail):
			fmt.Printf("✗ Already registered: %v\n", err)
		case errors.Is(err, store.ErrReferralCodeNotFound):
			fmt.Printf("✗ Unknown sponsor code %q\n", *parent)
		default:
			fmt.Printf("✗ Registration failed: %v\n", err)
		}
		os.Exit(1)
	}

	common.PrintHeader("USER REGISTERED", common.DefaultWidth)
	fmt.Printf("ID:            %s\n", user.Id)
	fmt.Printf("Name:          %s\n", user.Name)
	fmt.Printf("Email:         %s\n", user.Email)
	fmt.Printf("Referral code: %s\n", user.ReferralCode)
	if user.HasParent() {
		fmt.Printf("Sponsor:       %s (level %d)\n", user.ParentReferralCode, user.Level)
	} else {
		fmt.Println("Sponsor:       none (root)")
	}
	common.PrintSeparator("=", common.DefaultWidth)
}
