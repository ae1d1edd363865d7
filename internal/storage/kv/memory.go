package kv

import (
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryBucket is an in-memory bucket (not persisted).
type MemoryBucket struct {
	name string
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryBucket creates a new in-memory bucket.
func NewMemoryBucket(name string) *MemoryBucket {
	return &MemoryBucket{
		name:    name,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (b *MemoryBucket) Name() string       { return b.name }
func (b *MemoryBucket) IsPersistent() bool { return false }

func (b *MemoryBucket) Store(key string, value any, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}

	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = b.now().Add(ttl)
	}

	b.mu.Lock()
	b.entries[key] = entry
	b.mu.Unlock()
	return nil
}

func (b *MemoryBucket) Load(key string, dest any) (bool, error) {
	b.mu.Lock()
	entry, ok := b.entries[key]
	if ok && entry.expired(b.now()) {
		delete(b.entries, key)
		ok = false
	}
	b.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, decode(entry.data, dest)
}

func (b *MemoryBucket) Delete(key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.entries[key]
	delete(b.entries, key)
	return ok, nil
}

func (b *MemoryBucket) Keys() ([]string, error) {
	b.CleanupExpired()

	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, len(b.entries))
	for key := range b.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *MemoryBucket) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = make(map[string]memoryEntry)
	return nil
}

// CleanupExpired removes expired entries and returns how many were removed.
func (b *MemoryBucket) CleanupExpired() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	count := 0
	for key, entry := range b.entries {
		if entry.expired(now) {
			delete(b.entries, key)
			count++
		}
	}
	return count
}
