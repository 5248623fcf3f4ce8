package embedding

// VectorCache keeps exemplar vectors across restarts so the fixed example
// sets are embedded once per model, not once per process start.
//
// Two implementations are provided:
//   - memoryCache  in-memory only, used in tests and when no path is configured.
//   - boltCache    embedded key-value store (bbolt), used in production.
//
// NewBoundedCache puts an S3-FIFO eviction layer in front of either.
//
// Only fixed exemplar texts are ever written. Request text must never reach
// a VectorCache.

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"

	bolt "go.etcd.io/bbolt"
)

// VectorCache maps a key to a vector. All implementations must be safe for
// concurrent use.
type VectorCache interface {
	Get(key string) ([]float32, bool)
	Set(key string, v []float32)
	Delete(key string)
	Close() error
}

// --- memoryCache ---------------------------------------------------------

type memoryCache struct {
	mu    sync.RWMutex
	store map[string][]float32
}

// NewMemoryCache returns a process-local VectorCache.
func NewMemoryCache() VectorCache {
	return &memoryCache{store: make(map[string][]float32)}
}

func (c *memoryCache) Get(key string) ([]float32, bool) {
	c.mu.RLock()
	v, ok := c.store[key]
	c.mu.RUnlock()
	return v, ok
}

func (c *memoryCache) Set(key string, v []float32) {
	c.mu.Lock()
	c.store[key] = v
	c.mu.Unlock()
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.store, key)
	c.mu.Unlock()
}

func (c *memoryCache) Close() error { return nil }

// --- boltCache -----------------------------------------------------------

const vectorBucket = "exemplar_vectors"

type boltCache struct {
	db *bolt.DB
}

// OpenBoltCache opens (or creates) the bbolt database at path and ensures the
// bucket exists.
func OpenBoltCache(path string) (VectorCache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open vector cache %q: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(vectorBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create vector bucket: %w", err)
	}
	return &boltCache{db: db}, nil
}

func (c *boltCache) Get(key string) ([]float32, bool) {
	var v []float32
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(vectorBucket))
		if b == nil {
			return nil
		}
		// Decode inside the transaction: bbolt values are only valid until it ends.
		v = decodeVector(b.Get([]byte(key)))
		return nil
	})
	if err != nil {
		log.Printf("[EMBEDDING] vector cache get error: %v", err)
		return nil, false
	}
	return v, len(v) > 0
}

func (c *boltCache) Set(key string, v []float32) {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(vectorBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", vectorBucket)
		}
		return b.Put([]byte(key), encodeVector(v))
	}); err != nil {
		log.Printf("[EMBEDDING] vector cache set error: %v", err)
	}
}

func (c *boltCache) Delete(key string) {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(vectorBucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	}); err != nil {
		log.Printf("[EMBEDDING] vector cache delete error: %v", err)
	}
}

func (c *boltCache) Close() error {
	return c.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
