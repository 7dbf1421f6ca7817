// Package session holds the control-plane state that accrues per
// caller session: the call budget and the repeated-call detector.
package session

import (
	"context"
	"sync"
	"time"
)

// CounterStore is the shared counter backend. Both operations must be
// atomic: multiple invocations for one session can be in flight at
// once.
type CounterStore interface {
	// AtomicIncrement bumps a TTL-bounded counter and returns the new
	// value.
	AtomicIncrement(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// RecordSeen registers an occurrence of signature under key and
	// returns the occurrence count within the TTL window.
	RecordSeen(ctx context.Context, key, signature string, ttl time.Duration) (int, error)
}

// MemoryCounterStore is the in-process implementation, used directly
// in tests and as the fallback when the shared store is unreachable.
type MemoryCounterStore struct {
	mu         sync.Mutex
	counters   map[string]*memCounter
	signatures map[string][]time.Time
	now        func() time.Time
}

type memCounter struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryCounterStore creates an empty in-process store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters:   make(map[string]*memCounter),
		signatures: make(map[string][]time.Time),
		now:        time.Now,
	}
}

// AtomicIncrement implements CounterStore.
func (s *MemoryCounterStore) AtomicIncrement(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &memCounter{expiresAt: now.Add(ttl)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// RecordSeen implements CounterStore. Expired occurrences are pruned
// lazily on each call.
func (s *MemoryCounterStore) RecordSeen(ctx context.Context, key, signature string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-ttl)
	storageKey := key + "|" + signature

	kept := s.signatures[storageKey][:0]
	for _, ts := range s.signatures[storageKey] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	s.signatures[storageKey] = kept
	return len(kept), nil
}

// FallbackCounterStore tries the shared store first and degrades to a
// process-local one when it errors, trading cross-instance accuracy
// for availability. Rejection still works, it just counts per process.
type FallbackCounterStore struct {
	shared CounterStore
	local  *MemoryCounterStore
	onFall func(error)
}

// NewFallbackCounterStore wraps shared with a local fallback. onFall,
// if non-nil, observes each degradation (for logging).
func NewFallbackCounterStore(shared CounterStore, onFall func(error)) *FallbackCounterStore {
	return &FallbackCounterStore{
		shared: shared,
		local:  NewMemoryCounterStore(),
		onFall: onFall,
	}
}

// AtomicIncrement implements CounterStore.
func (s *FallbackCounterStore) AtomicIncrement(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if s.shared != nil {
		v, err := s.shared.AtomicIncrement(ctx, key, ttl)
		if err == nil {
			return v, nil
		}
		s.fell(err)
	}
	return s.local.AtomicIncrement(ctx, key, ttl)
}

// RecordSeen implements CounterStore.
func (s *FallbackCounterStore) RecordSeen(ctx context.Context, key, signature string, ttl time.Duration) (int, error) {
	if s.shared != nil {
		v, err := s.shared.RecordSeen(ctx, key, signature, ttl)
		if err == nil {
			return v, nil
		}
		s.fell(err)
	}
	return s.local.RecordSeen(ctx, key, signature, ttl)
}

func (s *FallbackCounterStore) fell(err error) {
	if s.onFall != nil {
		s.onFall(err)
	}
}
