package storage

import (
	"encoding/json"
	"fmt"
)

// Typed is a Store restricted to one kind, with values encoded as JSON.
type Typed[T any] struct {
	store *Store
	kind  string
}

// NewTyped returns a typed view over one kind of document.
func NewTyped[T any](store *Store, kind string) *Typed[T] {
	return &Typed[T]{store: store, kind: kind}
}

// Load decodes a document. Missing documents return the zero value and version 0.
func (t *Typed[T]) Load(id string) (T, int64, error) {
	var value T
	doc, err := t.store.Load(t.kind, id)
	if err != nil || doc.Version == 0 {
		return value, 0, err
	}
	if err := json.Unmarshal(doc.Payload, &value); err != nil {
		return value, 0, fmt.Errorf("decode %s/%s: %w", t.kind, id, err)
	}
	return value, doc.Version, nil
}

// Save encodes value and returns the document's new version.
func (t *Typed[T]) Save(id string, value T) (int64, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("encode %s/%s: %w", t.kind, id, err)
	}
	return t.store.Save(t.kind, id, payload)
}

// Remove deletes a document.
func (t *Typed[T]) Remove(id string) error {
	_, err := t.store.Remove(t.kind, id)
	return err
}
