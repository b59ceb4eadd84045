package watcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"referral-ledger-go/internal/api"
	"referral-ledger-go/internal/database"
	"referral-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReferralFeedWithoutMarkRead(t *testing.T) {
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
		BusyTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	ctx := context.Background()
	referrals := api.NewReferralService(db)

	root, err := referrals.RegisterUser(ctx, models.RegisterUserParams{
		Name: "John Doe", Email: "john@example.com", ReferralCode: "JOHN2024",
	})
	require.NoError(t, err)
	buyer, err := referrals.RegisterUser(ctx, models.RegisterUserParams{
		Name: "Alice Johnson", Email: "alice@example.com", ReferralCode: "ALICE2024", ParentReferralCode: "JOHN2024",
	})
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		_, err := referrals.ProcessPurchase(ctx, buyer.Id, decimal.NewFromInt(1000))
		require.NoError(t, err)
	}

	var handled atomic.Int32
	w := New(Config{
		Feed:            referrals,
		UserIds:         []string{root.Id},
		PollingInterval: 10 * time.Millisecond,
		Handler:         func(models.LiveUpdate) { handled.Add(1) },
	})
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.Eventually(t, func() bool { return handled.Load() == 12 }, 2*time.Second, 5*time.Millisecond)

	_, err = referrals.ProcessPurchase(ctx, buyer.Id, decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return handled.Load() == 13 }, 2*time.Second, 5*time.Millisecond)

	unread, err := referrals.GetUnreadUpdates(ctx, root.Id, 100)
	require.NoError(t, err)
	require.Len(t, unread, 13, "watching without mark-read leaves the feed unread")
}
