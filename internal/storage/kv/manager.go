package kv

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Manager hands out buckets by name and expires their entries.
type Manager struct {
	db *sql.DB

	mu      sync.Mutex
	buckets map[string]Bucket
}

// NewManager creates a new KV manager.
func NewManager(db *sql.DB) *Manager {
	return &Manager{
		db:      db,
		buckets: make(map[string]Bucket),
	}
}

// Bucket returns a bucket by name, creating it if it doesn't exist.
// The first call decides whether the bucket is persistent.
func (m *Manager) Bucket(name string, persistent bool) Bucket {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bucket, ok := m.buckets[name]; ok {
		return bucket
	}

	var bucket Bucket
	if persistent {
		bucket = NewSQLiteBucket(m.db, name)
	} else {
		bucket = NewMemoryBucket(name)
	}
	m.buckets[name] = bucket

	log.Debug().
		Str("bucket", name).
		Bool("persistent", persistent).
		Msg("Created KV bucket")
	return bucket
}

// RunCleanup removes expired entries every interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *Manager) cleanup() {
	count, err := CleanupExpired(m.db)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to cleanup expired KV entries")
	} else if count > 0 {
		log.Debug().Int64("count", count).Msg("Cleaned up expired KV entries")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bucket := range m.buckets {
		if mb, ok := bucket.(*MemoryBucket); ok {
			mb.CleanupExpired()
		}
	}
}
