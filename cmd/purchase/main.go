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
	"os"

	"referral-ledger-go/internal/common"
	"referral-ledger-go/internal/config"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	email := flag.String("email", "", "Buyer's email")
	code := flag.String("code", "", "Buyer's referral code")
	userId := flag.String("id", "", "Buyer's user id")
	amountFlag := flag.String("amount", "", "Purchase amount (required)")
	flag.Parse()

	if *amountFlag == "" || (*email == "" && *code == "" && *userId == "") {
		fmt.Println("Usage: purchase (-email EMAIL | -code CODE | -id ID) -amount 5000")
		os.Exit(1)
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		fmt.Printf("✗ Invalid amount %q: %v\n", *amountFlag, err)
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

	buyer, err := common.ResolveUser(ctx, services.DbService, *email, *code, *userId)
	if err != nil {
		fmt.Printf("✗ Buyer not found: %v\n", err)
		os.Exit(1)
	}

	result, err := services.Referrals.ProcessPurchase(ctx, buyer.Id, amount)
	if err != nil {
		fmt.Printf("✗ Purchase failed: %v\n", err)
		os.Exit(1)
	}

	common.PrintHeader("PURCHASE PROCESSED", common.DefaultWidth)
	fmt.Printf("Purchase: %s\n", result.Purchase.Id)
	fmt.Printf("Buyer:    %s (%s)\n", buyer.Name, buyer.ReferralCode)
	fmt.Printf("Amount:   %s\n", common.FormatAmount(result.Purchase.Amount))
	fmt.Printf("Profit:   %s\n", common.FormatAmount(result.Purchase.Profit))

	if len(result.Earnings) == 0 {
		fmt.Println("No sponsor, no commissions credited")
	}
	for i, earning := range result.Earnings {
		isLast := i == len(result.Earnings)-1
		fmt.Printf("%sLevel %d: %s (%s%%) to %s\n", common.BoxPrefix(isLast),
			earning.Level, common.FormatAmount(earning.Amount), earning.Percentage.String(), earning.UserId)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}
