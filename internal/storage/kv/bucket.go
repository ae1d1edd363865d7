// Package kv provides named key-value buckets for panel settings and macro
// scratch values, persisted in SQLite or kept in memory.
package kv

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bucket stores JSON-encoded values under string keys.
type Bucket interface {
	// Name returns the bucket name.
	Name() string

	// IsPersistent returns true if the bucket survives restarts.
	IsPersistent() bool

	// Store saves value under key. A positive ttl makes the entry expire.
	Store(key string, value any, ttl time.Duration) error

	// Load decodes the value under key into dest. Returns false if the key
	// is missing or expired.
	Load(key string, dest any) (bool, error)

	// Delete removes a key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Keys returns all live keys.
	Keys() ([]string, error)

	// Clear removes all keys from the bucket.
	Clear() error
}

func encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return data, nil
}

func decode(data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

// LoadInt reads an integer setting, returning def when it is missing or
// unreadable.
func LoadInt(b Bucket, key string, def int) int {
	var v int
	if ok, err := b.Load(key, &v); err != nil || !ok {
		return def
	}
	return v
}
