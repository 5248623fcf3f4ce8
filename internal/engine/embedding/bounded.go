package embedding

// boundedCache caps a VectorCache with S3-FIFO eviction. Exemplar vectors
// accumulate per provider/model pair; the bound keeps the on-disk store from
// growing each time the embedding model changes.
//
// Two FIFO queues plus a ghost set:
//
//   - S (small, ~10% of capacity): every new key lands here.
//   - M (main, the rest): keys read at least once while in S are promoted
//     here when they reach the head of S.
//   - G (ghost): a ring of keys recently evicted from S. A ghost key that is
//     written again skips S and goes straight to M.
//
// Each entry carries a frequency counter saturating at 3. Anything evicted
// from memory is also deleted from the backing store, so the backing store
// never holds more than capacity keys written through this layer. After a
// restart memory is cold and reads fall through to the backing store.
//
// Sizing:
//
//	sTarget  = max(1, capacity/10)
//	mTarget  = capacity - sTarget
//	ghostCap = max(4, 2*sTarget)

import (
	"container/list"
	"log"
	"sync"
)

// DefaultCacheCapacity bounds the vector cache when no capacity is configured.
const DefaultCacheCapacity = 1024

type boundedEntry struct {
	vec  []float32
	freq uint8
	elem *list.Element
	inM  bool
}

type boundedCache struct {
	mu sync.Mutex

	capacity int
	sTarget  int
	ghostCap int

	entries map[string]*boundedEntry
	small   *list.List
	main    *list.List

	ghostBuf   []string
	ghostSet   map[string]struct{}
	ghostHead  int
	ghostCount int

	backing VectorCache
}

// NewBoundedCache returns a VectorCache holding at most capacity vectors in
// memory and in backing. A non-positive capacity selects
// DefaultCacheCapacity; 1 is raised to 2.
func NewBoundedCache(backing VectorCache, capacity int) VectorCache {
	return newBoundedCache(backing, capacity)
}

func newBoundedCache(backing VectorCache, capacity int) *boundedCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	capacity = max(capacity, 2)
	sTarget := max(capacity/10, 1)
	ghostCap := max(2*sTarget, 4)
	log.Printf("[EMBEDDING] S3-FIFO vector cache capacity=%d sTarget=%d ghostCap=%d", capacity, sTarget, ghostCap)
	return &boundedCache{
		capacity: capacity,
		sTarget:  sTarget,
		ghostCap: ghostCap,
		entries:  make(map[string]*boundedEntry, capacity),
		small:    list.New(),
		main:     list.New(),
		ghostBuf: make([]string, ghostCap),
		ghostSet: make(map[string]struct{}, ghostCap),
		backing:  backing,
	}
}

// Get returns the vector for key, re-warming memory from the backing store
// on a miss.
func (c *boundedCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if e.freq < 3 {
			e.freq++
		}
		v := e.vec
		c.mu.Unlock()
		return v, true
	}
	c.mu.Unlock()

	v, ok := c.backing.Get(key)
	if !ok {
		return nil, false
	}
	c.dropBacking(c.insert(key, v))
	return v, true
}

// Set stores v under key in memory and in the backing store.
func (c *boundedCache) Set(key string, v []float32) {
	evicted := c.insert(key, v)
	c.backing.Set(key, v)
	c.dropBacking(evicted)
}

// Delete removes key from memory and from the backing store.
func (c *boundedCache) Delete(key string) {
	c.mu.Lock()
	c.remove(key)
	c.mu.Unlock()
	c.backing.Delete(key)
}

// Close closes the backing store.
func (c *boundedCache) Close() error {
	return c.backing.Close()
}

// insert adds or updates key and returns the keys evicted to make room.
// Backing-store deletes happen after c.mu is released.
func (c *boundedCache) insert(key string, v []float32) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.vec = v
		return nil
	}

	_, inM := c.ghostSet[key]
	q := c.small
	if inM {
		q = c.main
	}
	c.entries[key] = &boundedEntry{vec: v, elem: q.PushBack(key), inM: inM}

	var evicted []string
	for c.small.Len()+c.main.Len() > c.capacity {
		evicted = c.evictOne(evicted)
	}
	return evicted
}

// evictOne must be called with c.mu held.
func (c *boundedCache) evictOne(evicted []string) []string {
	if c.small.Len() > 0 {
		return c.evictSmall(evicted)
	}
	return c.evictMain(evicted)
}

// evictSmall pops the head of S and either promotes it or evicts it to the
// ghost ring. Must be called with c.mu held.
func (c *boundedCache) evictSmall(evicted []string) []string {
	front := c.small.Front()
	key := c.small.Remove(front).(string)
	e, ok := c.entries[key]
	if !ok {
		return evicted
	}

	if e.freq > 0 {
		e.freq = 0
		e.inM = true
		e.elem = c.main.PushBack(key)
		if c.main.Len() > c.capacity-c.sTarget {
			evicted = c.evictMain(evicted)
		}
		return evicted
	}
	delete(c.entries, key)
	c.ghostAdd(key)
	return append(evicted, key)
}

// evictMain must be called with c.mu held.
func (c *boundedCache) evictMain(evicted []string) []string {
	front := c.main.Front()
	if front == nil {
		return evicted
	}
	key := c.main.Remove(front).(string)
	delete(c.entries, key)
	return append(evicted, key)
}

// remove must be called with c.mu held.
func (c *boundedCache) remove(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	if e.inM {
		c.main.Remove(e.elem)
	} else {
		c.small.Remove(e.elem)
	}
	delete(c.entries, key)
}

// ghostAdd must be called with c.mu held.
func (c *boundedCache) ghostAdd(key string) {
	if _, ok := c.ghostSet[key]; ok {
		return
	}
	if c.ghostCount == c.ghostCap {
		delete(c.ghostSet, c.ghostBuf[c.ghostHead])
		c.ghostHead = (c.ghostHead + 1) % c.ghostCap
		c.ghostCount--
	}
	c.ghostBuf[(c.ghostHead+c.ghostCount)%c.ghostCap] = key
	c.ghostSet[key] = struct{}{}
	c.ghostCount++
}

func (c *boundedCache) dropBacking(keys []string) {
	for _, k := range keys {
		c.backing.Delete(k)
	}
}
