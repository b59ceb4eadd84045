package api

import (
	"context"

	"referral-ledger-go/internal/models"
)

// GetUnreadUpdates returns the oldest unread updates of a user, at most
// limit of them. A non-positive limit means DefaultUpdateLimit.
func (s *ReferralService) GetUnreadUpdates(ctx context.Context, userId string, limit int) ([]models.LiveUpdate, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = DefaultUpdateLimit
	}
	updates, err := s.store.GetUnreadUpdates(ctx, userId, limit)
	if err != nil {
		return nil, err
	}
	if updates == nil {
		updates = []models.LiveUpdate{}
	}
	return updates, nil
}

// GetUnreadUpdatesAfter is GetUnreadUpdates resumed after afterId, for
// callers that page through the feed without marking it read
func (s *ReferralService) GetUnreadUpdatesAfter(ctx context.Context, userId, afterId string, limit int) ([]models.LiveUpdate, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = DefaultUpdateLimit
	}
	updates, err := s.store.GetUnreadUpdatesAfter(ctx, userId, afterId, limit)
	if err != nil {
		return nil, err
	}
	if updates == nil {
		updates = []models.LiveUpdate{}
	}
	return updates, nil
}

// MarkUpdateRead is idempotent and ignores unknown ids
func (s *ReferralService) MarkUpdateRead(ctx context.Context, updateId string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.store.MarkUpdateRead(ctx, updateId)
}

func (s *ReferralService) MarkAllRead(ctx context.Context, userId string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.store.MarkAllUpdatesRead(ctx, userId)
}
