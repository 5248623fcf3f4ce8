package audit

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

const recordBucket = "audit_records"

// Bolt is a Store backed by an embedded bbolt database. Keys are the
// bucket's monotonically increasing sequence, so cursor order is write order.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the database at path and ensures the bucket
// exists.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open audit db %q: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recordBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create audit bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Write implements Store.
func (s *Bolt) Write(_ context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(recordBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", recordBucket)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
}

// Recent implements Store.
func (s *Bolt) Recent(ctx context.Context, limit int) ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(recordBucket))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode audit record: %w", err)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// Close implements Store.
func (s *Bolt) Close() error {
	return s.db.Close()
}
