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

package api

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"referral-ledger-go/internal/graph"
	"referral-ledger-go/internal/store"
)

// DefaultUpdateLimit is the feed page size when the caller does not pass one.
const DefaultUpdateLimit = 10

// ReferralService exposes the referral operations. It is the only writer of
// earning totals, earnings and live updates.
type ReferralService struct {
	store     store.ReferralStore
	graph     *graph.Graph
	mirror    store.EarningMirror
	publisher store.UpdatePublisher
	timeout   time.Duration
	now       func() time.Time
	locks     *userLocks
}

type Option func(*ReferralService)

// WithMirror posts every committed earning to an external ledger.
func WithMirror(mirror store.EarningMirror) Option {
	return func(s *ReferralService) { s.mirror = mirror }
}

// WithPublisher pushes every committed live update to connected clients.
func WithPublisher(publisher store.UpdatePublisher) Option {
	return func(s *ReferralService) { s.publisher = publisher }
}

// WithTimeout bounds each operation.
func WithTimeout(timeout time.Duration) Option {
	return func(s *ReferralService) { s.timeout = timeout }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *ReferralService) { s.now = now }
}

func NewReferralService(db store.ReferralStore, opts ...Option) *ReferralService {
	s := &ReferralService{
		store: db,
		graph: graph.New(db),
		now:   func() time.Time { return time.Now().UTC() },
		locks: newUserLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ReferralService) HealthCheck(ctx context.Context) error {
	_, err := s.store.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func (s *ReferralService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// userLocks serializes work on the same users while letting disjoint users
// proceed in parallel
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// lock acquires every id in sorted order and returns the release function
func (l *userLocks) lock(ids ...string) func() {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Strings(unique)

	held := make([]*userLock, 0, len(unique))
	for _, id := range unique {
		l.mu.Lock()
		ul, ok := l.locks[id]
		if !ok {
			ul = &userLock{}
			l.locks[id] = ul
		}
		ul.refs++
		l.mu.Unlock()

		ul.Lock()
		held = append(held, ul)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()

			l.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, unique[i])
			}
			l.mu.Unlock()
		}
	}
}
