package api

import (
	"context"
	"sync"
	"testing"

	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "want %s, got %s", want, got.String())
}

// assertReplay checks every user's totals against the sum of their earnings
func assertReplay(t *testing.T, s *ReferralService) {
	t.Helper()
	ctx := context.Background()

	users, err := s.GetUsers(ctx)
	require.NoError(t, err)
	for _, user := range users {
		earnings, err := s.GetEarnings(ctx, user.Id)
		require.NoError(t, err)

		levelOne, levelTwo := decimal.Zero, decimal.Zero
		for _, e := range earnings {
			if e.Level == 1 {
				levelOne = levelOne.Add(e.Amount)
			} else {
				levelTwo = levelTwo.Add(e.Amount)
			}
		}
		assert.True(t, user.LevelOneEarnings.Equal(levelOne), "level one of %s", user.ReferralCode)
		assert.True(t, user.LevelTwoEarnings.Equal(levelTwo), "level two of %s", user.ReferralCode)
		assert.True(t, user.TotalEarnings.Equal(levelOne.Add(levelTwo)), "total of %s", user.ReferralCode)
		assert.NoError(t, s.Reconcile(ctx, user.Id))
	}
}

func TestProcessPurchase_TwoLevels(t *testing.T) {
	publisher := &fakePublisher{}
	s, _ := setupTestService(t, WithPublisher(publisher))
	ctx := context.Background()

	p2 := registerTestUser(t, s, "John Doe", "JOHN2024", "")
	p1 := registerTestUser(t, s, "Alice Johnson", "ALICE2024", "JOHN2024")
	buyer := registerTestUser(t, s, "Carol Williams", "CAROL2024", "ALICE2024")

	result, err := s.ProcessPurchase(ctx, buyer.Id, dec("5000"))
	require.NoError(t, err)

	assert.Equal(t, models.PurchaseStatusCompleted, result.Purchase.Status)
	assertDecimal(t, "1000", result.Purchase.Profit)
	require.Len(t, result.Earnings, 2)

	assert.Equal(t, p1.Id, result.Earnings[0].UserId)
	assert.Equal(t, 1, result.Earnings[0].Level)
	assertDecimal(t, "50", result.Earnings[0].Amount)
	assertDecimal(t, "5", result.Earnings[0].Percentage)
	assert.Equal(t, p2.Id, result.Earnings[1].UserId)
	assert.Equal(t, 2, result.Earnings[1].Level)
	assertDecimal(t, "10", result.Earnings[1].Amount)
	for _, e := range result.Earnings {
		assert.Equal(t, buyer.Id, e.FromUserId)
		assert.Equal(t, result.Purchase.Id, e.PurchaseId)
	}

	alice, err := s.GetUser(ctx, p1.Id)
	require.NoError(t, err)
	assertDecimal(t, "50", alice.TotalEarnings)
	assertDecimal(t, "50", alice.LevelOneEarnings)
	john, err := s.GetUser(ctx, p2.Id)
	require.NoError(t, err)
	assertDecimal(t, "10", john.TotalEarnings)
	assertDecimal(t, "10", john.LevelTwoEarnings)

	aliceUpdates, err := s.GetUnreadUpdates(ctx, p1.Id, 0)
	require.NoError(t, err)
	require.Len(t, aliceUpdates, 1)
	assert.Equal(t, "You earned 50.00 from Carol Williams's purchase", aliceUpdates[0].Message)
	assert.Equal(t, models.UpdateTypeEarning, aliceUpdates[0].Type)

	johnUpdates, err := s.GetUnreadUpdates(ctx, p2.Id, 0)
	require.NoError(t, err)
	require.Len(t, johnUpdates, 1)
	assert.Equal(t, "You earned 10.00 from Level 2 referral", johnUpdates[0].Message)

	assert.Len(t, publisher.published(), 2)
	assertReplay(t, s)
}

func TestProcessPurchase_BelowMinimum(t *testing.T) {
	publisher := &fakePublisher{}
	s, _ := setupTestService(t, WithPublisher(publisher))
	ctx := context.Background()

	registerTestUser(t, s, "John Doe", "JOHN2024", "")
	buyer := registerTestUser(t, s, "Alice Johnson", "ALICE2024", "JOHN2024")

	_, err := s.ProcessPurchase(ctx, buyer.Id, dec("999"))
	require.ErrorIs(t, err, store.ErrInvalidAmount)

	purchases, err := s.GetPurchases(ctx, buyer.Id)
	require.NoError(t, err)
	assert.Empty(t, purchases)
	assert.Empty(t, publisher.published())

	users, err := s.GetUsers(ctx)
	require.NoError(t, err)
	for _, u := range users {
		assert.True(t, u.TotalEarnings.IsZero())
	}
}

func TestProcessPurchase_RootBuyer(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	root := registerTestUser(t, s, "John Doe", "JOHN2024", "")

	result, err := s.ProcessPurchase(ctx, root.Id, dec("1000000"))
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusCompleted, result.Purchase.Status)
	assert.NotNil(t, result.Earnings)
	assert.Empty(t, result.Earnings)

	purchases, err := s.GetPurchases(ctx, root.Id)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assertDecimal(t, "200000", purchases[0].Profit)
}

func TestProcessPurchase_LevelOneOnly(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	root := registerTestUser(t, s, "John Doe", "JOHN2024", "")
	buyer := registerTestUser(t, s, "Alice Johnson", "ALICE2024", "JOHN2024")

	result, err := s.ProcessPurchase(ctx, buyer.Id, dec("1001"))
	require.NoError(t, err)
	require.Len(t, result.Earnings, 1)
	assert.Equal(t, root.Id, result.Earnings[0].UserId)
	assertDecimal(t, "10.01", result.Earnings[0].Amount)
}

func TestProcessPurchase_UnknownBuyer(t *testing.T) {
	s, _ := setupTestService(t)

	_, err := s.ProcessPurchase(context.Background(), "missing", dec("5000"))
	require.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestProcessPurchase_NotDeduplicated(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	root := registerTestUser(t, s, "John Doe", "JOHN2024", "")
	buyer := registerTestUser(t, s, "Alice Johnson", "ALICE2024", "JOHN2024")

	for i := 0; i < 3; i++ {
		_, err := s.ProcessPurchase(ctx, buyer.Id, dec("5000"))
		require.NoError(t, err)
	}

	john, err := s.GetUser(ctx, root.Id)
	require.NoError(t, err)
	assertDecimal(t, "150", john.TotalEarnings)
	assertReplay(t, s)
}

func TestProcessPurchase_ConcurrentSharedBeneficiary(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	root := registerTestUser(t, s, "John Doe", "JOHN2024", "")
	sponsor := registerTestUser(t, s, "Alice Johnson", "ALICE2024", "JOHN2024")

	const buyers = 8
	ids := make([]string, buyers)
	for i := range ids {
		code := "BUYER" + string(rune('A'+i))
		ids[i] = registerTestUser(t, s, "Buyer "+code, code, "ALICE2024").Id
	}

	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.ProcessPurchase(ctx, id, dec("1000"))
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	alice, err := s.GetUser(ctx, sponsor.Id)
	require.NoError(t, err)
	assertDecimal(t, "80", alice.TotalEarnings)
	john, err := s.GetUser(ctx, root.Id)
	require.NoError(t, err)
	assertDecimal(t, "16", john.TotalEarnings)
	assertReplay(t, s)
}

func TestProcessPurchase_MirrorsEarnings(t *testing.T) {
	mirror := newFakeMirror()
	s, db := setupTestService(t, WithMirror(mirror))
	ctx := context.Background()

	root := registerTestUser(t, s, "John Doe", "JOHN2024", "")
	alice := registerTestUser(t, s, "Alice Johnson", "ALICE2024", "JOHN2024")
	carol := registerTestUser(t, s, "Carol Williams", "CAROL2024", "ALICE2024")

	_, err := s.ProcessPurchase(ctx, carol.Id, dec("3400"))
	require.NoError(t, err)

	assert.Len(t, mirror.posted, 2)
	require.NoError(t, s.Reconcile(ctx, alice.Id))
	require.NoError(t, s.Reconcile(ctx, root.Id))

	// A mirror that lost an earning reports a mismatch until resynced
	mirror.mu.Lock()
	for id, e := range mirror.posted {
		if e.UserId == alice.Id {
			delete(mirror.posted, id)
		}
	}
	mirror.balance[alice.Id] = decimal.Zero
	mirror.mu.Unlock()

	require.ErrorIs(t, s.Reconcile(ctx, alice.Id), store.ErrReconciliationMismatch)

	posted, err := s.ResyncMirror(ctx, alice.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, posted)
	require.NoError(t, s.Reconcile(ctx, alice.Id))

	// The local ledger is unaffected by the mirror
	earnings, err := db.GetEarningsForUser(ctx, alice.Id)
	require.NoError(t, err)
	require.Len(t, earnings, 1)
	assertDecimal(t, "34", earnings[0].Amount)
}

func TestResyncMirror_NoMirror(t *testing.T) {
	s, _ := setupTestService(t)
	_, err := s.ResyncMirror(context.Background(), "anyone")
	require.Error(t, err)
}

func TestGetEarnings_UnknownUser(t *testing.T) {
	s, _ := setupTestService(t)
	_, err := s.GetEarnings(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestResyncMirror_UnknownUser(t *testing.T) {
	mirror := newFakeMirror()
	s, _ := setupTestService(t, WithMirror(mirror))

	posted, err := s.ResyncMirror(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrUserNotFound)
	assert.Zero(t, posted)
	assert.Empty(t, mirror.posted)
}

func TestGetPurchase_EarningsAndJournal(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	root := registerTestUser(t, s, "John Doe", "JOHN2024", "")
	alice := registerTestUser(t, s, "Alice Johnson", "ALICE2024", "JOHN2024")
	carol := registerTestUser(t, s, "Carol Williams", "CAROL2024", "ALICE2024")

	result, err := s.ProcessPurchase(ctx, carol.Id, dec("3400"))
	require.NoError(t, err)

	purchases, err := s.GetPurchases(ctx, carol.Id)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, result.Purchase.Id, purchases[0].Id)
	assertDecimal(t, "680", purchases[0].Profit)

	detail, err := s.GetPurchase(ctx, result.Purchase.Id)
	require.NoError(t, err)
	require.Len(t, detail.Earnings, 2)
	assert.Equal(t, alice.Id, detail.Earnings[0].UserId)
	assert.Equal(t, root.Id, detail.Earnings[1].UserId)

	require.Len(t, detail.Journal, 4)
	debits, credits := decimal.Zero, decimal.Zero
	for _, entry := range detail.Journal {
		debits = debits.Add(entry.DebitAmount)
		credits = credits.Add(entry.CreditAmount)
	}
	assertDecimal(t, "40.8", debits)
	assert.True(t, debits.Equal(credits), "journal must balance")

	none, err := s.GetPurchases(ctx, root.Id)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGetPurchase_NotFound(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	_, err := s.GetPurchase(ctx, "missing")
	require.ErrorIs(t, err, store.ErrPurchaseNotFound)

	_, err = s.GetPurchases(ctx, "missing")
	require.ErrorIs(t, err, store.ErrUserNotFound)
}
