package store

import (
	"context"
	"errors"
	"time"

	"referral-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrInvalidAmount          = errors.New("purchase amount below minimum")
	ErrInvalidInput           = errors.New("invalid input")
	ErrUserNotFound           = errors.New("user not found")
	ErrPurchaseNotFound       = errors.New("purchase not found")
	ErrDuplicateCode          = errors.New("referral code already registered")
	ErrDuplicateEmail         = errors.New("email already registered")
	ErrReferralCodeNotFound   = errors.New("referral code not found")
	ErrCyclicReferral         = errors.New("referral would create a cycle")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrReconciliationMismatch = errors.New("earning totals do not match ledger")
)

// CreateUserParams contains the parameters for inserting a user. Level and
// parent are resolved by the caller; the store assigns the id.
type CreateUserParams struct {
	Name               string
	Email              string
	ReferralCode       string
	ParentReferralCode string
	ParentId           string
	Level              int
	JoinedAt           time.Time
}

// RecordPurchaseParams contains the parameters for recording a purchase.
// Profit is derived from Amount by the store.
type RecordPurchaseParams struct {
	UserId    string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// CreditParams describes one beneficiary credit of a purchase.
type CreditParams struct {
	UserId        string
	FromUserId    string
	Level         int
	Amount        decimal.Decimal
	Percentage    decimal.Decimal
	ExpectVersion int64
	UpdateMessage string
	CreatedAt     time.Time
}

// ApplyPurchaseParams is a purchase together with the credits it causes.
// Everything is committed in one unit or not at all.
type ApplyPurchaseParams struct {
	Purchase RecordPurchaseParams
	Credits  []CreditParams
}

// AppliedPurchase is what ApplyPurchase committed.
type AppliedPurchase struct {
	Purchase models.Purchase
	Earnings []models.Earning
	Updates  []models.LiveUpdate
}

// UserReader is the read side of the user collection, which is all the
// referral graph needs.
type UserReader interface {
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	GetUsersByIds(ctx context.Context, userIds []string) ([]models.User, error)
}

// ReferralStore defines the contract that every backend must satisfy.
type ReferralStore interface {
	UserReader

	// --- Users ---
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error)
	CountUsers(ctx context.Context) (int, error)

	// --- Ledger ---
	RecordPurchase(ctx context.Context, params RecordPurchaseParams) (*models.Purchase, error)
	RecordEarning(ctx context.Context, earning models.Earning) (*models.Earning, error)
	ApplyPurchase(ctx context.Context, params ApplyPurchaseParams) (*AppliedPurchase, error)
	GetPurchaseById(ctx context.Context, purchaseId string) (*models.Purchase, error)
	GetPurchasesForUser(ctx context.Context, userId string) ([]models.Purchase, error)
	GetEarningsForUser(ctx context.Context, userId string) ([]models.Earning, error)
	GetEarningsForPurchase(ctx context.Context, purchaseId string) ([]models.Earning, error)
	GetMonthlyEarnings(ctx context.Context, userId string, asOf time.Time) (decimal.Decimal, error)
	GetJournalEntries(ctx context.Context, earningId string) ([]models.JournalEntry, error)
	ReconcileUserEarnings(ctx context.Context, userId string) error

	// --- Live updates ---
	GetUnreadUpdates(ctx context.Context, userId string, limit int) ([]models.LiveUpdate, error)
	GetUnreadUpdatesAfter(ctx context.Context, userId, afterId string, limit int) ([]models.LiveUpdate, error)
	MarkUpdateRead(ctx context.Context, updateId string) error
	MarkAllUpdatesRead(ctx context.Context, userId string) (int64, error)

	// --- Lifecycle ---
	Close()
}

// EarningMirror receives every committed earning for an external ledger.
type EarningMirror interface {
	PostEarning(ctx context.Context, earning models.Earning) error
	GetMirroredEarnings(ctx context.Context, userId string) (decimal.Decimal, error)
}

// UpdatePublisher pushes committed live updates to connected clients.
type UpdatePublisher interface {
	Publish(update models.LiveUpdate)
}
