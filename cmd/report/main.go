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
	"flag"
	"fmt"

	"referral-ledger-go/internal/api"
	"referral-ledger-go/internal/common"
	"referral-ledger-go/internal/config"
	"referral-ledger-go/internal/models"

	"go.uber.org/zap"
)

type reportStats struct {
	totalUsers       int
	usersWithEarning int
	totalEarnings    int
}

func printEarning(earning models.Earning, isLast bool) {
	fmt.Printf("%s L%d %12s (%s%%) purchase %s at %s\n",
		common.BoxPrefix(isLast),
		earning.Level,
		common.FormatAmount(earning.Amount),
		earning.Percentage.String(),
		shortId(earning.PurchaseId),
		earning.CreatedAt.Format("2006-01-02 15:04:05"))
}

func printPurchase(detail *models.PurchaseDetail) {
	purchase := detail.Purchase
	fmt.Printf("│  Purchase %s %12s profit %s at %s\n",
		shortId(purchase.Id),
		common.FormatAmount(purchase.Amount),
		common.FormatAmount(purchase.Profit),
		purchase.CreatedAt.Format("2006-01-02 15:04:05"))
	for i, entry := range detail.Journal {
		fmt.Printf("│  %s %-22s %-10s Dr %12s Cr %12s\n",
			common.BoxPrefix(i == len(detail.Journal)-1),
			entry.AccountType,
			shortId(entry.AccountId),
			common.FormatAmount(entry.DebitAmount),
			common.FormatAmount(entry.CreditAmount))
	}
}

func shortId(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

func printUserHeader(user common.UserInfo, stats *models.ReferralStats) {
	fmt.Printf("\n┌─ User: %s (%s) code %s, level %d\n", user.Name, user.Email, user.ReferralCode, user.Level)
	fmt.Printf("│  ID: %s\n", user.Id)
	fmt.Printf("│  Referrals: %d (L1 %d, L2 %d)\n", stats.TotalReferrals, stats.LevelOneReferrals, stats.LevelTwoReferrals)
	fmt.Printf("│  Earnings: total %s, this month %s, per referral %s\n",
		common.FormatAmount(stats.TotalEarnings),
		common.FormatAmount(stats.MonthlyEarnings),
		common.FormatAmount(stats.AverageEarningPerReferral))
	common.PrintBoxSeparator(78)
}

func processUser(ctx context.Context, user common.UserInfo, referrals *api.ReferralService, showTree, showPurchases bool) (int, error) {
	stats, err := referrals.GetReferralStats(ctx, user.Id)
	if err != nil {
		return 0, fmt.Errorf("failed to get stats: %w", err)
	}
	earnings, err := referrals.GetEarnings(ctx, user.Id)
	if err != nil {
		return 0, fmt.Errorf("failed to get earnings: %w", err)
	}

	printUserHeader(user, stats)
	for i, earning := range earnings {
		printEarning(earning, i == len(earnings)-1)
	}

	if showPurchases {
		purchases, err := referrals.GetPurchases(ctx, user.Id)
		if err != nil {
			return 0, fmt.Errorf("failed to get purchases: %w", err)
		}
		for _, purchase := range purchases {
			detail, err := referrals.GetPurchase(ctx, purchase.Id)
			if err != nil {
				return 0, fmt.Errorf("failed to get purchase %s: %w", purchase.Id, err)
			}
			printPurchase(detail)
		}
	}

	if showTree {
		tree, err := referrals.GetReferralTree(ctx, user.Id, -1)
		if err != nil {
			return 0, fmt.Errorf("failed to build tree: %w", err)
		}
		common.PrintReferralTree(tree)
	}

	return len(earnings), nil
}

func main() {
	ctx := context.Background()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	treeFlag := flag.Bool("tree", false, "Print each user's referral tree")
	purchasesFlag := flag.Bool("purchases", false, "Print each user's purchases with their journal entries")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Logging.Development)
	defer loggerCleanup()

	logger.Info("Starting referral report")

	// Read-only, so neither the mirror nor the push hub is needed
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	referrals := api.NewReferralService(dbService, api.WithTimeout(cfg.Service.StoreTimeout))

	users, err := common.InitializeUsers(ctx, dbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("REFERRAL EARNINGS REPORT", common.DefaultWidth)

	stats := reportStats{}
	for _, user := range users {
		stats.totalUsers++

		count, err := processUser(ctx, user, referrals, *treeFlag, *purchasesFlag)
		if err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("user_name", user.Name),
				zap.Error(err))
			continue
		}
		if count > 0 {
			stats.usersWithEarning++
			stats.totalEarnings += count
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d users with earnings (%d earning records across %d users queried)",
		stats.usersWithEarning, stats.totalEarnings, stats.totalUsers)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Referral report completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_earnings", stats.usersWithEarning),
		zap.Int("earning_records", stats.totalEarnings))
}
