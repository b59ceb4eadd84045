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

package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"referral-ledger-go/internal/models"

	"go.uber.org/zap"
)

// DefaultPageSize is the feed page fetched per request when Config.Limit is unset
const DefaultPageSize = 10

// Feed is the pull side of the notification feed
type Feed interface {
	GetUnreadUpdatesAfter(ctx context.Context, userId, afterId string, limit int) ([]models.LiveUpdate, error)
	MarkUpdateRead(ctx context.Context, updateId string) error
}

type Config struct {
	Feed            Feed
	UserIds         []string
	Limit           int
	PollingInterval time.Duration
	// MarkRead acknowledges every update once handled
	MarkRead bool
	Handler  func(models.LiveUpdate)
}

// Watcher polls the feed of a set of users and hands each new unread update
// to its handler exactly once
type Watcher struct {
	feed            Feed
	userIds         []string
	limit           int
	pollingInterval time.Duration
	markRead        bool
	handler         func(models.LiveUpdate)

	// Last handled update id, per user
	cursors map[string]string
	mutex   sync.Mutex

	stopChan chan struct{}
	doneChan chan struct{}
}

func New(cfg Config) *Watcher {
	handler := cfg.Handler
	if handler == nil {
		handler = PrintUpdate
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return &Watcher{
		feed:            cfg.Feed,
		userIds:         cfg.UserIds,
		limit:           limit,
		pollingInterval: cfg.PollingInterval,
		markRead:        cfg.MarkRead,
		handler:         handler,
		cursors:         make(map[string]string),
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start begins polling in the background
func (w *Watcher) Start(ctx context.Context) error {
	if len(w.userIds) == 0 {
		return fmt.Errorf("no users to watch")
	}
	if w.pollingInterval <= 0 {
		return fmt.Errorf("polling interval must be positive, got %v", w.pollingInterval)
	}

	go w.pollLoop(ctx)

	zap.L().Info("Feed watcher started",
		zap.Int("users", len(w.userIds)),
		zap.Duration("polling_interval", w.pollingInterval),
		zap.Bool("mark_read", w.markRead))
	return nil
}

// Stop waits for the current poll to finish
func (w *Watcher) Stop() {
	zap.L().Info("Stopping feed watcher")
	close(w.stopChan)
	<-w.doneChan
	zap.L().Info("Feed watcher stopped")
}

// Done is closed once the poll loop has exited
func (w *Watcher) Done() <-chan struct{} {
	return w.doneChan
}

func (w *Watcher) pollLoop(ctx context.Context) {
	defer close(w.doneChan)

	ticker := time.NewTicker(w.pollingInterval)
	defer ticker.Stop()

	w.pollUsers(ctx)

	for {
		select {
		case <-ticker.C:
			w.pollUsers(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) pollUsers(ctx context.Context) {
	var wg sync.WaitGroup

	for _, userId := range w.userIds {
		wg.Add(1)

		go func(id string) {
			defer wg.Done()

			if err := w.pollUser(ctx, id); err != nil {
				zap.L().Error("Failed to poll feed", zap.String("user_id", id), zap.Error(err))
			}
		}(userId)
	}

	wg.Wait()
}

func (w *Watcher) pollUser(ctx context.Context, userId string) error {
	w.mutex.Lock()
	cursor := w.cursors[userId]
	w.mutex.Unlock()

	// Drain every page past the cursor so a backlog larger than one page
	// is delivered in a single poll
	for {
		updates, err := w.feed.GetUnreadUpdatesAfter(ctx, userId, cursor, w.limit)
		if err != nil {
			return fmt.Errorf("failed to fetch updates: %w", err)
		}

		for _, update := range updates {
			w.handler(update)
			cursor = update.Id

			if w.markRead {
				if err := w.feed.MarkUpdateRead(ctx, update.Id); err != nil {
					zap.L().Error("Failed to mark update read",
						zap.String("update_id", update.Id),
						zap.Error(err))
				}
			}
		}

		w.mutex.Lock()
		w.cursors[userId] = cursor
		w.mutex.Unlock()

		if len(updates) < w.limit || ctx.Err() != nil {
			return nil
		}
	}
}
