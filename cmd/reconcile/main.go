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
	"referral-ledger-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emailFlag := flag.String("email", "", "Reconcile a single user by email (optional)")
	mirrorFlag := flag.Bool("mirror", false, "Re-post each user's earnings to the ledger mirror before checking")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Logging.Development)
	defer loggerCleanup()

	if *mirrorFlag && cfg.Service.LedgerMirror == "" {
		logger.Fatal("-mirror requires LEDGER_MIRROR=formance")
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	users, err := common.InitializeUsers(ctx, services.DbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("EARNINGS RECONCILIATION", common.DefaultWidth)

	var mismatched, failed int
	for _, user := range users {
		if *mirrorFlag {
			posted, err := services.Referrals.ResyncMirror(ctx, user.Id)
			if err != nil {
				logger.Error("Failed to resync mirror", zap.String("user_id", user.Id), zap.Error(err))
				failed++
				continue
			}
			logger.Debug("Mirror resynced", zap.String("user_id", user.Id), zap.Int("earnings", posted))
		}

		err := services.Referrals.Reconcile(ctx, user.Id)
		switch {
		case err == nil:
			fmt.Printf("✓ %-30s %s\n", user.Email, user.ReferralCode)
		case errors.Is(err, store.ErrReconciliationMismatch):
			mismatched++
			fmt.Printf("✗ %-30s %s: %v\n", user.Email, user.ReferralCode, err)
		default:
			failed++
			logger.Error("Failed to reconcile user", zap.String("user_id", user.Id), zap.Error(err))
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d users checked, %d mismatched, %d failed", len(users), mismatched, failed)
	common.PrintFooter(summary, common.DefaultWidth)

	if mismatched > 0 || failed > 0 {
		os.Exit(1)
	}
}
