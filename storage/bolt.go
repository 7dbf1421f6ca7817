// Package storage provides the durable backends: a bbolt counter
// store for session budget/loop state and a bbolt append-only audit
// store with an in-memory btree index.
package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// Bucket names in bbolt.
var (
	bucketCounters   = []byte("counters")
	bucketSignatures = []byte("signatures")
	bucketAudit      = []byte("audit")
	bucketMeta       = []byte("meta")
)

// Open opens (or creates) the tagvet database in dir.
func Open(dir string) (*bbolt.DB, error) {
	dbPath := filepath.Join(dir, "tagvet.db")

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketCounters, bucketSignatures, bucketAudit, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func int64ToBytes(v int64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func bytesToInt64(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
