package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// memoryEntry is one cached value plus its expiry.
type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero means no expiration
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is an in-process Store with per-entry TTLs and LRU eviction.
// It suits single-instance deployments and tests; shared deployments should
// use the redis implementation so instances see the same entries.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	closed     bool
	stop       chan struct{}
	stopOnce   sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a memory store holding at most maxEntries values.
// A maxEntries of 0 means unbounded. When the store is full, the least
// recently used entry is evicted.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		stop:       make(chan struct{}),
	}
}

// StartCleanup launches a background goroutine that removes expired entries
// every interval. Call it at most once; Close stops it. Without it, expired
// entries are still invisible but occupy memory until touched or evicted.
func (s *MemoryStore) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.removeExpired()
			case <-s.stop:
				return
			}
		}
	}()
}

// Get retrieves a value by key. Expired entries are removed on access.
// The returned slice is isolated from the stored one.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	elem, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	entry := elem.Value.(*memoryEntry)
	if entry.expired(time.Now()) {
		s.removeElement(elem)
		return nil, ErrNotFound
	}

	s.order.MoveToFront(elem)
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set stores a value with the given TTL, overwriting any existing entry.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		return ErrInvalidTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	if elem, ok := s.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = stored
		entry.expiresAt = expiresAt
		s.order.MoveToFront(elem)
		return nil
	}

	elem := s.order.PushFront(&memoryEntry{key: key, value: stored, expiresAt: expiresAt})
	s.entries[key] = elem

	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		if oldest := s.order.Back(); oldest != nil {
			s.removeElement(oldest)
		}
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if elem, ok := s.entries[key]; ok {
		s.removeElement(elem)
	}
	return nil
}

// Health reports whether the store is usable.
func (s *MemoryStore) Health(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close stops the cleanup goroutine and releases all entries. Close is
// idempotent.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.entries = nil
	s.order.Init()
	return nil
}

// Len reports the number of stored entries, including expired entries that
// have not been swept yet.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) removeExpired() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	for elem := s.order.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).expired(now) {
			s.removeElement(elem)
		}
		elem = prev
	}
}

func (s *MemoryStore) removeElement(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	delete(s.entries, entry.key)
	s.order.Remove(elem)
}
