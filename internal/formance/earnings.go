package formance

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"referral-ledger-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// numscriptEarningCredited moves a commission from the platform's expense
// account to the beneficiary. The platform account may go negative: it is the
// running total of commissions paid.
const numscriptEarningCredited = `vars {
  monetary $commission
  account $user_id
  string $earning_id
  string $purchase_id
  string $from_user_id
  string $level
  string $percentage
  string $amount_human
}

send $commission (
  source = @platform:commissions allowing unbounded overdraft
  destination = @users:$user_id:commissions
)

set_tx_meta("event_type", "earning_credited")
set_tx_meta("earning_id", $earning_id)
set_tx_meta("purchase_id", $purchase_id)
set_tx_meta("from_user_id", $from_user_id)
set_tx_meta("level", $level)
set_tx_meta("percentage", $percentage)
set_tx_meta("amount_human", $amount_human)
`

// PostEarning records one credited earning. The earning id is the transaction
// reference, so posting the same earning twice is a no-op.
func (s *Service) PostEarning(ctx context.Context, earning models.Earning) error {
	postTx := shared.V2PostTransaction{
		Reference: strPtr(earning.Id),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptEarningCredited,
			Vars:  earningVars(earning),
		},
	}
	if !earning.CreatedAt.IsZero() {
		postTx.Timestamp = &earning.CreatedAt
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Debug("Earning already mirrored", zap.String("earning_id", earning.Id))
			return nil
		}
		return fmt.Errorf("error posting earning to formance: %w", err)
	}

	zap.L().Info("Earning mirrored to Formance",
		zap.String("earning_id", earning.Id),
		zap.String("user_id", earning.UserId),
		zap.Int("level", earning.Level),
		zap.String("amount", earning.Amount.String()))
	return nil
}

// GetMirroredEarnings returns the commission balance the ledger holds for a user.
func (s *Service) GetMirroredEarnings(ctx context.Context, userId string) (decimal.Decimal, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: userAccount(userId),
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("error reading formance account: %w", err)
	}

	return bigIntToDecimal(volumeBalance(resp.V2AccountResponse.Data.Volumes, formanceAsset())), nil
}

func earningVars(earning models.Earning) map[string]string {
	return map[string]string{
		"commission":   fmt.Sprintf("%s %s", formanceAsset(), toSmallestUnit(earning.Amount).String()),
		"user_id":      earning.UserId,
		"earning_id":   earning.Id,
		"purchase_id":  earning.PurchaseId,
		"from_user_id": earning.FromUserId,
		"level":        strconv.Itoa(earning.Level),
		"percentage":   earning.Percentage.String(),
		"amount_human": earning.Amount.String(),
	}
}

// toSmallestUnit converts a commission to ledger units, truncating anything
// finer than the asset precision.
func toSmallestUnit(amount decimal.Decimal) *big.Int {
	shifted := amount.Shift(commissionPrecision)
	if !shifted.Equal(shifted.Truncate(0)) {
		zap.L().Warn("Commission exceeds ledger precision, truncating",
			zap.String("amount", amount.String()),
			zap.Int("precision", commissionPrecision))
	}
	return shifted.Truncate(0).BigInt()
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// bigIntToDecimal converts a *big.Int in smallest-unit to a human-readable decimal.
func bigIntToDecimal(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -commissionPrecision)
}
