package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"referral-ledger-go/internal/commission"
	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func creditFor(beneficiary, buyer *models.User, level int, amount string) store.CreditParams {
	pct := commission.LevelOnePercentage
	if level == 2 {
		pct = commission.LevelTwoPercentage
	}
	return store.CreditParams{
		UserId:        beneficiary.Id,
		FromUserId:    buyer.Id,
		Level:         level,
		Amount:        decimal.RequireFromString(amount),
		Percentage:    pct,
		UpdateMessage: "You earned " + amount,
	}
}

func applyTestPurchase(t *testing.T, s *Service, buyer *models.User, amount decimal.Decimal, credits ...store.CreditParams) *store.AppliedPurchase {
	t.Helper()

	applied, err := s.ApplyPurchase(context.Background(), store.ApplyPurchaseParams{
		Purchase: store.RecordPurchaseParams{
			UserId: buyer.Id,
			Amount: amount,
		},
		Credits: credits,
	})
	if err != nil {
		t.Fatalf("ApplyPurchase failed: %v", err)
	}
	return applied
}

func TestApplyPurchase_CreditsBothLevels(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	john := createTestUser(t, service, "John", "JOHN", nil)
	alice := createTestUser(t, service, "Alice", "ALICE", john)
	carol := createTestUser(t, service, "Carol", "CAROL", alice)

	applied := applyTestPurchase(t, service, carol, decimal.NewFromInt(5000),
		creditFor(alice, carol, 1, "50"),
		creditFor(john, carol, 2, "10"))

	if applied.Purchase.Status != models.PurchaseStatusCompleted {
		t.Errorf("Expected completed purchase, got %s", applied.Purchase.Status)
	}
	if !applied.Purchase.Profit.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected profit 1000, got %s", applied.Purchase.Profit)
	}
	if len(applied.Earnings) != 2 || applied.Earnings[0].Level != 1 || applied.Earnings[1].Level != 2 {
		t.Fatalf("Expected level 1 then level 2 earnings, got %+v", applied.Earnings)
	}
	if len(applied.Updates) != 2 {
		t.Errorf("Expected 2 live updates, got %d", len(applied.Updates))
	}

	gotAlice, _ := service.GetUserById(ctx, alice.Id)
	if !gotAlice.LevelOneEarnings.Equal(decimal.NewFromInt(50)) || !gotAlice.TotalEarnings.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Unexpected Alice totals: l1=%s total=%s", gotAlice.LevelOneEarnings, gotAlice.TotalEarnings)
	}
	if gotAlice.Version != 2 {
		t.Errorf("Expected version bump to 2, got %d", gotAlice.Version)
	}

	gotJohn, _ := service.GetUserById(ctx, john.Id)
	if !gotJohn.LevelTwoEarnings.Equal(decimal.NewFromInt(10)) || !gotJohn.LevelOneEarnings.IsZero() {
		t.Errorf("Unexpected John totals: l1=%s l2=%s", gotJohn.LevelOneEarnings, gotJohn.LevelTwoEarnings)
	}

	stored, err := service.GetPurchaseById(ctx, applied.Purchase.Id)
	if err != nil || stored == nil {
		t.Fatalf("GetPurchaseById failed: %v", err)
	}
	if !stored.Amount.Equal(decimal.NewFromInt(5000)) || stored.UserId != carol.Id {
		t.Errorf("Unexpected stored purchase: %+v", stored)
	}

	forPurchase, _ := service.GetEarningsForPurchase(ctx, applied.Purchase.Id)
	if len(forPurchase) != 2 {
		t.Errorf("Expected 2 earnings for purchase, got %d", len(forPurchase))
	}

	entries, err := service.GetJournalEntries(ctx, applied.Earnings[0].Id)
	if err != nil {
		t.Fatalf("GetJournalEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 journal entries, got %d", len(entries))
	}
	debits, credits := decimal.Zero, decimal.Zero
	for _, e := range entries {
		debits = debits.Add(e.DebitAmount)
		credits = credits.Add(e.CreditAmount)
	}
	if !debits.Equal(credits) || !debits.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Journal does not balance: debits=%s credits=%s", debits, credits)
	}
}

func TestApplyPurchase_RootBuyerNoCredits(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	john := createTestUser(t, service, "John", "JOHN", nil)
	applied := applyTestPurchase(t, service, john, decimal.NewFromInt(2000))

	if len(applied.Earnings) != 0 {
		t.Errorf("Expected no earnings, got %d", len(applied.Earnings))
	}
	purchases, _ := service.GetPurchasesForUser(context.Background(), john.Id)
	if len(purchases) != 1 {
		t.Errorf("Expected purchase to stand, got %d", len(purchases))
	}
}

func TestApplyPurchase_RollsBackOnConflict(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	john := createTestUser(t, service, "John", "JOHN", nil)
	alice := createTestUser(t, service, "Alice", "ALICE", john)
	carol := createTestUser(t, service, "Carol", "CAROL", alice)

	levelOne := creditFor(alice, carol, 1, "50")
	levelOne.ExpectVersion = 1
	levelTwo := creditFor(john, carol, 2, "10")
	levelTwo.ExpectVersion = 7 // stale

	_, err := service.ApplyPurchase(ctx, store.ApplyPurchaseParams{
		Purchase: store.RecordPurchaseParams{UserId: carol.Id, Amount: decimal.NewFromInt(5000)},
		Credits:  []store.CreditParams{levelOne, levelTwo},
	})
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("Expected ErrConcurrentModification, got %v", err)
	}

	// Nothing from the failed purchase may be visible
	purchases, _ := service.GetPurchasesForUser(ctx, carol.Id)
	if len(purchases) != 0 {
		t.Errorf("Expected no purchases, got %d", len(purchases))
	}
	earnings, _ := service.GetEarningsForUser(ctx, alice.Id)
	if len(earnings) != 0 {
		t.Errorf("Expected no earnings, got %d", len(earnings))
	}
	gotAlice, _ := service.GetUserById(ctx, alice.Id)
	if !gotAlice.TotalEarnings.IsZero() || gotAlice.Version != 1 {
		t.Errorf("Expected untouched totals, got total=%s version=%d", gotAlice.TotalEarnings, gotAlice.Version)
	}
	updates, _ := service.GetUnreadUpdates(ctx, alice.Id, 10)
	if len(updates) != 0 {
		t.Errorf("Expected no updates, got %d", len(updates))
	}
}

func TestApplyPurchase_SameBeneficiaryTwice(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	john := createTestUser(t, service, "John", "JOHN", nil)
	alice := createTestUser(t, service, "Alice", "ALICE", john)

	first := creditFor(john, alice, 1, "10")
	first.ExpectVersion = 1
	second := creditFor(john, alice, 2, "2")
	second.ExpectVersion = 1

	applyTestPurchase(t, service, alice, decimal.NewFromInt(1000), first, second)

	got, _ := service.GetUserById(context.Background(), john.Id)
	if !got.TotalEarnings.Equal(decimal.NewFromInt(12)) || got.Version != 3 {
		t.Errorf("Expected total 12 at version 3, got %s at %d", got.TotalEarnings, got.Version)
	}
}

func TestApplyPurchase_UnknownUsers(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	john := createTestUser(t, service, "John", "JOHN", nil)

	_, err := service.ApplyPurchase(ctx, store.ApplyPurchaseParams{
		Purchase: store.RecordPurchaseParams{UserId: "ghost", Amount: decimal.NewFromInt(1000)},
	})
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound for unknown buyer, got %v", err)
	}

	_, err = service.ApplyPurchase(ctx, store.ApplyPurchaseParams{
		Purchase: store.RecordPurchaseParams{UserId: john.Id, Amount: decimal.NewFromInt(1000)},
		Credits:  []store.CreditParams{{UserId: "ghost", FromUserId: john.Id, Level: 1, Amount: decimal.NewFromInt(10)}},
	})
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound for unknown beneficiary, got %v", err)
	}

	purchases, _ := service.GetPurchasesForUser(ctx, john.Id)
	if len(purchases) != 0 {
		t.Errorf("Expected rollback of purchase, got %d", len(purchases))
	}
}

func TestRecordPurchase_BelowMinimum(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	john := createTestUser(t, service, "John", "JOHN", nil)

	_, err := service.RecordPurchase(ctx, store.RecordPurchaseParams{UserId: john.Id, Amount: decimal.NewFromInt(999)})
	if !errors.Is(err, store.ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}

	purchase, err := service.RecordPurchase(ctx, store.RecordPurchaseParams{
		UserId: john.Id, Amount: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("RecordPurchase failed: %v", err)
	}
	if purchase.Id == "" || purchase.Status != models.PurchaseStatusCompleted {
		t.Errorf("Unexpected purchase: %+v", purchase)
	}
}

func TestRecordPurchase_DerivesProfit(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	john := createTestUser(t, service, "John", "JOHN", nil)

	purchase, err := service.RecordPurchase(ctx, store.RecordPurchaseParams{UserId: john.Id, Amount: decimal.NewFromInt(5000)})
	if err != nil {
		t.Fatalf("RecordPurchase failed: %v", err)
	}
	if !purchase.Profit.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected profit 1000, got %s", purchase.Profit)
	}

	stored, err := service.GetPurchaseById(ctx, purchase.Id)
	if err != nil {
		t.Fatalf("GetPurchaseById failed: %v", err)
	}
	if stored == nil || !stored.Profit.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected stored profit 1000, got %+v", stored)
	}
}

func TestGetMonthlyEarnings(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	john := createTestUser(t, service, "John", "JOHN", nil)
	alice := createTestUser(t, service, "Alice", "ALICE", john)

	dates := []time.Time{
		time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC),
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, d := range dates {
		_, err := service.RecordEarning(ctx, models.Earning{
			UserId:     john.Id,
			FromUserId: alice.Id,
			Amount:     decimal.NewFromInt(int64(i + 1)),
			Percentage: commission.LevelOnePercentage,
			Level:      1,
			PurchaseId: "purchase",
			CreatedAt:  d,
		})
		if err != nil {
			t.Fatalf("RecordEarning failed: %v", err)
		}
	}

	got, err := service.GetMonthlyEarnings(ctx, john.Id, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetMonthlyEarnings failed: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected March earnings 5, got %s", got)
	}

	none, _ := service.GetMonthlyEarnings(ctx, john.Id, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	if !none.IsZero() {
		t.Errorf("Expected zero for a month without earnings, got %s", none)
	}

	earnings, _ := service.GetEarningsForUser(ctx, john.Id)
	if len(earnings) != 4 || !earnings[0].Amount.Equal(decimal.NewFromInt(1)) || !earnings[3].Amount.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Expected earnings in insertion order, got %+v", earnings)
	}
}

func TestReconcileUserEarnings(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	john := createTestUser(t, service, "John", "JOHN", nil)
	alice := createTestUser(t, service, "Alice", "ALICE", john)
	carol := createTestUser(t, service, "Carol", "CAROL", alice)

	amounts := []int64{1000, 2500, 1001, 1000000}
	for _, a := range amounts {
		b := commission.Compute(decimal.NewFromInt(a))
		applyTestPurchase(t, service, carol, decimal.NewFromInt(a),
			creditFor(alice, carol, 1, b.LevelOne.String()),
			creditFor(john, carol, 2, b.LevelTwo.String()))
	}

	// Replaying the earnings rebuilds the stored totals exactly
	for _, u := range []*models.User{john, alice, carol} {
		if err := service.ReconcileUserEarnings(ctx, u.Id); err != nil {
			t.Errorf("Reconcile(%s) failed: %v", u.Name, err)
		}
	}

	if _, err := service.db.ExecContext(ctx, `UPDATE users SET total_earnings = '1' WHERE id = ?`, john.Id); err != nil {
		t.Fatalf("Failed to tamper with totals: %v", err)
	}
	if err := service.ReconcileUserEarnings(ctx, john.Id); !errors.Is(err, store.ErrReconciliationMismatch) {
		t.Errorf("Expected ErrReconciliationMismatch, got %v", err)
	}
	if err := service.ReconcileUserEarnings(ctx, "ghost"); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}
