// Package store provides CounterStore backends for github.com/jassus213/go-defense.
//
// Currently supported backends:
//   - MemoryStore: in-memory store for single-instance applications
//   - RedisStore: Redis-based store for distributed applications
//   - SQLStore: SQL table store (SQLite through modernc.org/sqlite)
//
// Every backend re-applies the timeout on each write, so a key expires
// timeout after it was last touched. A timeout <= 0 keeps the key forever.
//
// Example usage:
//
//	ctx := context.Background()
//	st := store.NewMemory(ctx, time.Minute) // cleanup interval = 1 minute
//	failures := defense.NewSimple(st, "login_fail:1.2.3.4", 3, time.Minute)
package store

import (
	"context"
	"sync"
	"time"

	defense "github.com/jassus213/go-defense"
)

// entry stores the counter value and expiration time for a key.
// A zero expiresAt never expires.
type entry struct {
	value     int64
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-memory implementation of defense.CounterStore.
//
// Expired keys are invisible as soon as their TTL passes; an optional
// background goroutine removes them from the map.
//
// Note: MemoryStore is suitable for single-instance applications.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	opts    options
}

var _ defense.CounterStore = (*MemoryStore)(nil)

// NewMemory creates a new MemoryStore instance.
//
// ctx: a parent context used to manage the lifecycle of the background cleanup goroutine.
// cleanupInterval: interval at which expired entries are removed. Pass 0 to disable cleanup.
//
// Example:
//
//	ctx := context.Background()
//	st := store.NewMemory(ctx, time.Minute)
func NewMemory(ctx context.Context, cleanupInterval time.Duration, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]entry),
		opts:    newOptions(opts),
	}

	if cleanupInterval > 0 {
		go s.runCleanup(ctx, cleanupInterval)
	}

	return s
}

// Increase atomically adds step to the counter at key and refreshes its TTL.
func (s *MemoryStore) Increase(ctx context.Context, key string, step int64, timeout time.Duration) (int64, error) {
	if err := defense.ValidateStep(step); err != nil {
		return 0, err
	}
	return s.add(s.opts.key(key), step, timeout), nil
}

// Decrease atomically subtracts step from the counter at key and refreshes its TTL.
func (s *MemoryStore) Decrease(ctx context.Context, key string, step int64, timeout time.Duration) (int64, error) {
	if err := defense.ValidateStep(step); err != nil {
		return 0, err
	}
	return s.add(s.opts.key(key), -step, timeout), nil
}

func (s *MemoryStore) add(key string, delta int64, timeout time.Duration) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	e, found := s.entries[key]
	if !found || e.expired(now) {
		e = entry{}
	}

	e.value += delta
	e.expiresAt = s.opts.expiry(now, timeout)
	s.entries[key] = e
	return e.value
}

// Get returns the counter at key, or ok == false when it is missing or expired.
func (s *MemoryStore) Get(ctx context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.entries[s.opts.key(key)]
	if !found || e.expired(s.opts.now()) {
		return 0, false, nil
	}
	return e.value, true, nil
}

// Set overwrites the counter at key and applies timeout.
func (s *MemoryStore) Set(ctx context.Context, key string, value int64, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[s.opts.key(key)] = entry{
		value:     value,
		expiresAt: s.opts.expiry(s.opts.now(), timeout),
	}
	return nil
}

// Remove deletes key.
func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, s.opts.key(key))
	return nil
}

// Len returns the number of entries held in memory, expired ones included
// until the next cleanup.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// runCleanup periodically removes expired entries until ctx is done.
func (s *MemoryStore) runCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-ctx.Done():
			return
		}
	}
}

func (s *MemoryStore) cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
