package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase statuses
const (
	PurchaseStatusCompleted = "completed"
	PurchaseStatusPending   = "pending"
	PurchaseStatusFailed    = "failed"
)

// Live update types
const (
	UpdateTypeEarning  = "earning"
	UpdateTypeReferral = "referral"
	UpdateTypePurchase = "purchase"
)

// User represents a participant in the referral graph with running earning totals
type User struct {
	Id                 string          `db:"id" json:"id"`
	Name               string          `db:"name" json:"name"`
	Email              string          `db:"email" json:"email"`
	ReferralCode       string          `db:"referral_code" json:"referral_code"`
	ParentReferralCode string          `db:"parent_referral_code" json:"parent_referral_code,omitempty"`
	Level              int             `db:"level" json:"level"`
	DirectReferrals    []string        `json:"direct_referrals"`
	LevelOneEarnings   decimal.Decimal `db:"level_one_earnings" json:"level_one_earnings"`
	LevelTwoEarnings   decimal.Decimal `db:"level_two_earnings" json:"level_two_earnings"`
	TotalEarnings      decimal.Decimal `db:"total_earnings" json:"total_earnings"`
	Version            int64           `db:"version" json:"-"`
	JoinedAt           time.Time       `db:"joined_at" json:"joined_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
	IsActive           bool            `db:"active" json:"is_active"`
}

// HasParent reports whether the user was registered with a sponsor code
func (u *User) HasParent() bool {
	return u.ParentReferralCode != ""
}

// Purchase represents an immutable purchase record (cold data)
type Purchase struct {
	Id        string          `db:"id" json:"id"`
	UserId    string          `db:"user_id" json:"user_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Profit    decimal.Decimal `db:"profit" json:"profit"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Earning represents one credited commission (append-only audit trail)
type Earning struct {
	Id         string          `db:"id" json:"id"`
	UserId     string          `db:"user_id" json:"user_id"`
	FromUserId string          `db:"from_user_id" json:"from_user_id"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Percentage decimal.Decimal `db:"percentage" json:"percentage"`
	Level      int             `db:"level" json:"level"`
	PurchaseId string          `db:"purchase_id" json:"purchase_id"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// LiveUpdate is a user-facing notification derived from a ledger write
type LiveUpdate struct {
	Id        string           `db:"id" json:"id"`
	UserId    string           `db:"user_id" json:"user_id"`
	Type      string           `db:"type" json:"type"`
	Message   string           `db:"message" json:"message"`
	Amount    *decimal.Decimal `db:"amount" json:"amount,omitempty"`
	Timestamp time.Time        `db:"created_at" json:"timestamp"`
	Read      bool             `db:"is_read" json:"read"`
}

// JournalEntry is a double-entry row written alongside each earning
type JournalEntry struct {
	Id           string          `db:"id" json:"id"`
	EarningId    string          `db:"earning_id" json:"earning_id"`
	AccountType  string          `db:"account_type" json:"account_type"`
	AccountId    string          `db:"account_id" json:"account_id"`
	DebitAmount  decimal.Decimal `db:"debit_amount" json:"debit_amount"`
	CreditAmount decimal.Decimal `db:"credit_amount" json:"credit_amount"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
