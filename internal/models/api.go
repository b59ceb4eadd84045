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

package models

import (
	"github.com/shopspring/decimal"
)

// ReferralStats is derived on demand from the referral graph and the ledger
type ReferralStats struct {
	TotalReferrals            int             `json:"total_referrals"`
	LevelOneReferrals         int             `json:"level_one_referrals"`
	LevelTwoReferrals         int             `json:"level_two_referrals"`
	TotalEarnings             decimal.Decimal `json:"total_earnings"`
	MonthlyEarnings           decimal.Decimal `json:"monthly_earnings"`
	AverageEarningPerReferral decimal.Decimal `json:"average_earning_per_referral"`
}

// ReferralNode is a user decorated with its (depth limited) referral subtree
type ReferralNode struct {
	User
	Children []*ReferralNode `json:"children"`
}

// PurchaseResult represents the outcome of processing a purchase
type PurchaseResult struct {
	Purchase Purchase  `json:"purchase"`
	Earnings []Earning `json:"earnings"`
}

// PurchaseDetail is a purchase with its earnings and their journal rows
type PurchaseDetail struct {
	Purchase Purchase       `json:"purchase"`
	Earnings []Earning      `json:"earnings"`
	Journal  []JournalEntry `json:"journal"`
}

// RegisterUserParams carries the registration input
type RegisterUserParams struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	ReferralCode       string `json:"referral_code"`
	ParentReferralCode string `json:"parent_referral_code,omitempty"`
}
