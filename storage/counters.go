package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// BoltCounterStore implements the session counter-store contract on
// bbolt. Increments run inside write transactions, which bbolt
// serializes, giving the atomic increment-and-read the budget tracker
// needs across concurrent invocations.
type BoltCounterStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// NewBoltCounterStore wraps an open database.
func NewBoltCounterStore(db *bbolt.DB) *BoltCounterStore {
	return &BoltCounterStore{db: db, now: time.Now}
}

type counterRow struct {
	Count     int64     `json:"count"`
	ExpiresAt time.Time `json:"expires_at"`
}

type signatureRow struct {
	Timestamps []time.Time `json:"timestamps"`
}

// AtomicIncrement bumps the counter under key and returns the new
// value. A counter past its TTL restarts from zero; the TTL clock
// starts at the first increment of a fresh window.
func (s *BoltCounterStore) AtomicIncrement(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var value int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCounters)
		now := s.now()

		var row counterRow
		if raw := bucket.Get([]byte(key)); raw != nil {
			if err := json.Unmarshal(raw, &row); err != nil {
				return fmt.Errorf("decode counter %s: %w", key, err)
			}
		}
		if row.ExpiresAt.IsZero() || now.After(row.ExpiresAt) {
			row = counterRow{ExpiresAt: now.Add(ttl)}
		}
		row.Count++
		value = row.Count

		raw, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), raw)
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

// RecordSeen appends an occurrence of signature under key and returns
// how many occurrences fall inside the TTL window, this one included.
// Expired entries are pruned lazily here, not by a background job.
func (s *BoltCounterStore) RecordSeen(ctx context.Context, key, signature string, ttl time.Duration) (int, error) {
	var count int
	storageKey := []byte(key + "|" + signature)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSignatures)
		now := s.now()
		cutoff := now.Add(-ttl)

		var row signatureRow
		if raw := bucket.Get(storageKey); raw != nil {
			if err := json.Unmarshal(raw, &row); err != nil {
				return fmt.Errorf("decode signature %s: %w", key, err)
			}
		}

		kept := row.Timestamps[:0]
		for _, ts := range row.Timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		row.Timestamps = append(kept, now)
		count = len(row.Timestamps)

		raw, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return bucket.Put(storageKey, raw)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
