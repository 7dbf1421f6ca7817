package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/yairfalse/tagvet/audit"
)

// BoltAuditStore is the append-only audit sink. Records go to bbolt
// keyed by sequence number; an in-memory btree index over
// (timestamp, sequence) and a correlation map serve the two query
// shapes. The index is rebuilt from disk on open.
type BoltAuditStore struct {
	mu sync.RWMutex

	db       *bbolt.DB
	sequence int64

	byTime        *btree.BTreeG[timeIndexEntry]
	byCorrelation map[string][]int64
}

type timeIndexEntry struct {
	ts  time.Time
	seq int64
}

func timeIndexLess(a, b timeIndexEntry) bool {
	if !a.ts.Equal(b.ts) {
		return a.ts.Before(b.ts)
	}
	return a.seq < b.seq
}

// NewBoltAuditStore wraps an open database and rebuilds the index.
func NewBoltAuditStore(db *bbolt.DB) (*BoltAuditStore, error) {
	s := &BoltAuditStore{
		db:            db,
		byTime:        btree.NewG(32, timeIndexLess),
		byCorrelation: make(map[string][]int64),
	}
	if err := s.rebuildIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Append writes one record. Records are never updated or deleted.
func (s *BoltAuditStore) Append(ctx context.Context, record audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence++
	seq := s.sequence

	err := s.db.Update(func(tx *bbolt.Tx) error {
		raw, err := json.Marshal(record)
		if err != nil {
			return err
		}
		bucket := tx.Bucket(bucketAudit)
		if err := bucket.Put(int64ToBytes(seq), raw); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put([]byte("audit_sequence"), int64ToBytes(seq))
	})
	if err != nil {
		s.sequence--
		return fmt.Errorf("append audit record: %w", err)
	}

	s.byTime.ReplaceOrInsert(timeIndexEntry{ts: record.Timestamp, seq: seq})
	s.byCorrelation[record.CorrelationID] = append(s.byCorrelation[record.CorrelationID], seq)
	return nil
}

// QueryByCorrelation returns all records of one invocation in append
// order.
func (s *BoltAuditStore) QueryByCorrelation(ctx context.Context, correlationID string) ([]audit.Record, error) {
	s.mu.RLock()
	seqs := append([]int64(nil), s.byCorrelation[correlationID]...)
	s.mu.RUnlock()

	return s.fetch(seqs)
}

// QueryByTime returns records in [start, end) in append order.
func (s *BoltAuditStore) QueryByTime(ctx context.Context, start, end time.Time) ([]audit.Record, error) {
	s.mu.RLock()
	var seqs []int64
	s.byTime.AscendGreaterOrEqual(timeIndexEntry{ts: start}, func(e timeIndexEntry) bool {
		if !e.ts.Before(end) {
			return false
		}
		seqs = append(seqs, e.seq)
		return true
	})
	s.mu.RUnlock()

	return s.fetch(seqs)
}

func (s *BoltAuditStore) fetch(seqs []int64) ([]audit.Record, error) {
	records := make([]audit.Record, 0, len(seqs))
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAudit)
		for _, seq := range seqs {
			raw := bucket.Get(int64ToBytes(seq))
			if raw == nil {
				continue
			}
			var record audit.Record
			if err := json.Unmarshal(raw, &record); err != nil {
				return fmt.Errorf("decode audit record %d: %w", seq, err)
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *BoltAuditStore) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket(bucketMeta).Get([]byte("audit_sequence")); raw != nil {
			s.sequence = bytesToInt64(raw)
		}
		return tx.Bucket(bucketAudit).ForEach(func(k, v []byte) error {
			var record audit.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("decode audit record during rebuild: %w", err)
			}
			seq := bytesToInt64(k)
			s.byTime.ReplaceOrInsert(timeIndexEntry{ts: record.Timestamp, seq: seq})
			s.byCorrelation[record.CorrelationID] = append(s.byCorrelation[record.CorrelationID], seq)
			return nil
		})
	})
}
