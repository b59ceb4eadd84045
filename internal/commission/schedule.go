package commission

import (
	"fmt"

	"referral-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

// The whole business policy. Level rates apply to profit, not to the
// purchase amount.
var (
	MinPurchase  = decimal.NewFromInt(1000)
	ProfitMargin = decimal.RequireFromString("0.20")
	LevelOneRate = decimal.RequireFromString("0.05")
	LevelTwoRate = decimal.RequireFromString("0.01")

	// Percentages recorded on earning records.
	LevelOnePercentage = decimal.NewFromInt(5)
	LevelTwoPercentage = decimal.NewFromInt(1)
)

// Breakdown is the split of a single purchase.
type Breakdown struct {
	Profit   decimal.Decimal
	LevelOne decimal.Decimal
	LevelTwo decimal.Decimal
}

// Compute returns profit and per-level commissions for a purchase amount.
// Amounts under MinPurchase earn nothing.
func Compute(amount decimal.Decimal) Breakdown {
	if amount.LessThan(MinPurchase) {
		return Breakdown{Profit: decimal.Zero, LevelOne: decimal.Zero, LevelTwo: decimal.Zero}
	}

	profit := amount.Mul(ProfitMargin)
	return Breakdown{
		Profit:   profit,
		LevelOne: profit.Mul(LevelOneRate),
		LevelTwo: profit.Mul(LevelTwoRate),
	}
}

// Validate rejects amounts under the purchase floor.
func Validate(amount decimal.Decimal) error {
	if amount.LessThan(MinPurchase) {
		return fmt.Errorf("%w: %s < %s", store.ErrInvalidAmount, amount.String(), MinPurchase.String())
	}
	return nil
}

// ForLevel returns the amount and recorded percentage for a beneficiary level.
func (b Breakdown) ForLevel(level int) (decimal.Decimal, decimal.Decimal) {
	switch level {
	case 1:
		return b.LevelOne, LevelOnePercentage
	case 2:
		return b.LevelTwo, LevelTwoPercentage
	default:
		return decimal.Zero, decimal.Zero
	}
}
