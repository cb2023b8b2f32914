package cache

import (
	"context"
	"hash/fnv"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"focus-backend/internal/metrics"
	"focus-backend/internal/models"
)

// MemoryConfig holds configuration for the in-memory store
type MemoryConfig struct {
	Capacity int              // maximum entries across all shards
	TTL      time.Duration    // entry lifetime
	Shards   int              // independent lock domains
	Clock    func() time.Time // defaults to time.Now
}

// DefaultMemoryConfig returns default configuration
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity: 10000,
		TTL:      24 * time.Hour,
		Shards:   16,
	}
}

// Memory is a sharded LRU store with TTL.
//
// Keys hash to one of N shards, each a doubly-linked list plus map guarded by its
// own mutex, so different keys rarely contend and writes to the same key serialize.
// Expired entries are dropped lazily on access and by CleanupExpired.
type Memory struct {
	shards []*lruShard
	ttl    time.Duration
	now    func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type lruEntry struct {
	key        string
	value      models.Prediction
	insertedAt time.Time
	expiresAt  time.Time
	prev       *lruEntry
	next       *lruEntry
}

type lruShard struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*lruEntry
	// head.next is the most recently used, tail.prev the least
	head *lruEntry
	tail *lruEntry
}

// NewMemory creates an in-memory store
func NewMemory(config MemoryConfig) *Memory {
	if config.Capacity <= 0 {
		config.Capacity = 10000
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	if config.Shards <= 0 {
		config.Shards = 16
	}
	if config.Shards > config.Capacity {
		config.Shards = config.Capacity
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	perShard := (config.Capacity + config.Shards - 1) / config.Shards

	m := &Memory{
		shards: make([]*lruShard, config.Shards),
		ttl:    config.TTL,
		now:    config.Clock,
	}
	for i := range m.shards {
		s := &lruShard{
			capacity: perShard,
			items:    make(map[string]*lruEntry),
			head:     &lruEntry{},
			tail:     &lruEntry{},
		}
		s.head.next = s.tail
		s.tail.prev = s.head
		m.shards[i] = s
	}
	return m
}

// Name implements Store.
func (m *Memory) Name() string { return "memory" }

// Close implements Store.
func (m *Memory) Close() error { return nil }

// Get implements Store. Hits move the entry to the front.
func (m *Memory) Get(_ context.Context, key Key) (models.Prediction, bool, error) {
	k := key.String()
	s := m.shardFor(k)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[k]
	if !ok {
		m.misses.Add(1)
		return models.Prediction{}, false, nil
	}
	if m.now().After(entry.expiresAt) {
		s.remove(entry)
		metrics.CacheEntries.Dec()
		m.misses.Add(1)
		return models.Prediction{}, false, nil
	}

	s.moveToFront(entry)
	m.hits.Add(1)
	return clonePrediction(entry.value), true, nil
}

// Put implements Store. The least recently used entry of the shard is evicted
// when the shard is full.
func (m *Memory) Put(_ context.Context, key Key, p models.Prediction) error {
	now := m.now()
	m.put(key.String(), p, now, now.Add(m.ttl))
	return nil
}

// PutUntil stores p with an absolute expiry, never later than the configured TTL.
// An already expired entry is not stored.
func (m *Memory) PutUntil(_ context.Context, key Key, p models.Prediction, expiresAt time.Time) error {
	now := m.now()
	if limit := now.Add(m.ttl); expiresAt.IsZero() || expiresAt.After(limit) {
		expiresAt = limit
	}
	if !expiresAt.After(now) {
		return nil
	}
	m.put(key.String(), p, now, expiresAt)
	return nil
}

func (m *Memory) put(k string, p models.Prediction, now, expiresAt time.Time) {
	s := m.shardFor(k)

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.items[k]; ok {
		entry.value = clonePrediction(p)
		entry.insertedAt = now
		entry.expiresAt = expiresAt
		s.moveToFront(entry)
		return
	}

	entry := &lruEntry{
		key:        k,
		value:      clonePrediction(p),
		insertedAt: now,
		expiresAt:  expiresAt,
	}
	s.addToFront(entry)
	s.items[k] = entry
	metrics.CacheEntries.Inc()

	for len(s.items) > s.capacity {
		oldest := s.tail.prev
		if oldest == s.head {
			break
		}
		s.remove(oldest)
		metrics.CacheEntries.Dec()
		metrics.CacheEvictions.Inc()
		m.evictions.Add(1)
	}
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key Key) error {
	k := key.String()
	s := m.shardFor(k)

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.items[k]; ok {
		s.remove(entry)
		metrics.CacheEntries.Dec()
	}
	return nil
}

// Len returns the number of stored entries, expired ones included until cleaned up.
func (m *Memory) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.Lock()
		n += len(s.items)
		s.mu.Unlock()
	}
	return n
}

// CleanupExpired removes all expired entries and returns how many were removed.
func (m *Memory) CleanupExpired() int {
	now := m.now()
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for entry := s.tail.prev; entry != s.head; {
			prev := entry.prev
			if now.After(entry.expiresAt) {
				s.remove(entry)
				removed++
			}
			entry = prev
		}
		s.mu.Unlock()
	}
	metrics.CacheEntries.Sub(float64(removed))
	return removed
}

// MemoryStats is a snapshot of cache counters
type MemoryStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// Stats returns hit/miss/eviction counters and the current size.
func (m *Memory) Stats() MemoryStats {
	return MemoryStats{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Evictions: m.evictions.Load(),
		Size:      m.Len(),
	}
}

func (m *Memory) shardFor(key string) *lruShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%uint32(len(m.shards))]
}

// Internal list methods, must be called with the shard lock held

func (s *lruShard) addToFront(entry *lruEntry) {
	entry.prev = s.head
	entry.next = s.head.next
	s.head.next.prev = entry
	s.head.next = entry
}

func (s *lruShard) moveToFront(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	s.addToFront(entry)
}

func (s *lruShard) remove(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(s.items, entry.key)
}

// clonePrediction copies the recommendation slice so callers never share it with the cache
func clonePrediction(p models.Prediction) models.Prediction {
	p.Recommendations = slices.Clone(p.Recommendations)
	return p
}
