// Package storage persists versioned JSON documents in the resource_state table.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Doc is one stored document. A zero Version means it does not exist.
type Doc struct {
	Payload   []byte
	Version   int64
	UpdatedAt time.Time
}

// Store keeps documents keyed by kind and id.
type Store struct {
	db *sql.DB

	// Serializes writers; SQLite allows only one anyway and this avoids
	// burning the busy timeout.
	writeMu sync.Mutex
}

// NewStore wraps an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load reads a document. A missing document is not an error.
func (s *Store) Load(kind, id string) (Doc, error) {
	var (
		doc     Doc
		payload string
		updated int64
	)
	row := s.db.QueryRow(
		`SELECT payload, version, updated_at FROM resource_state WHERE kind = ? AND id = ?`,
		kind, id)
	switch err := row.Scan(&payload, &doc.Version, &updated); {
	case errors.Is(err, sql.ErrNoRows):
		return Doc{}, nil
	case err != nil:
		return Doc{}, fmt.Errorf("load %s/%s: %w", kind, id, err)
	}
	doc.Payload = []byte(payload)
	doc.UpdatedAt = time.Unix(updated, 0).UTC()
	return doc, nil
}

// Save writes a document and returns its new version, starting at 1.
func (s *Store) Save(kind, id string, payload []byte) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var version int64
	err := s.db.QueryRow(`
		INSERT INTO resource_state (kind, id, payload, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			payload = excluded.payload,
			version = resource_state.version + 1,
			updated_at = excluded.updated_at
		RETURNING version
	`, kind, id, string(payload), time.Now().Unix()).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("save %s/%s: %w", kind, id, err)
	}
	return version, nil
}

// Remove deletes a document and reports whether it existed.
func (s *Store) Remove(kind, id string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.Exec(`DELETE FROM resource_state WHERE kind = ? AND id = ?`, kind, id)
	if err != nil {
		return false, fmt.Errorf("remove %s/%s: %w", kind, id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Purge deletes every document of a kind and returns how many went.
func (s *Store) Purge(kind string) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.Exec(`DELETE FROM resource_state WHERE kind = ?`, kind)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", kind, err)
	}
	return res.RowsAffected()
}
