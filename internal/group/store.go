package group

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightdeck/internal/storage"
)

const (
	storeKind = "panel"
	storeID   = "groups"
)

// SQLStore keeps the group list as one versioned document. Each group is
// decoded on its own so a single malformed entry does not lose the rest.
type SQLStore struct {
	docs *storage.Typed[[]json.RawMessage]
}

// NewSQLStore creates a group store backed by the resource_state table.
func NewSQLStore(store *storage.Store) *SQLStore {
	return &SQLStore{docs: storage.NewTyped[[]json.RawMessage](store, storeKind)}
}

// Load returns the persisted groups in display order.
func (s *SQLStore) Load() ([]Group, error) {
	raw, version, err := s.docs.Load(storeID)
	if err != nil {
		return nil, err
	}

	groups := make([]Group, 0, len(raw))
	for i, entry := range raw {
		var g Group
		if err := json.Unmarshal(entry, &g); err != nil {
			log.Warn().Err(err).Int("index", i).Msg("Discarding malformed group")
			continue
		}
		groups = append(groups, g)
	}

	log.Debug().Int64("version", version).Int("groups", len(groups)).Msg("Loaded groups document")
	return groups, nil
}

// Save replaces the persisted group list.
func (s *SQLStore) Save(groups []Group) error {
	raw := make([]json.RawMessage, 0, len(groups))
	for _, g := range groups {
		b, err := json.Marshal(g)
		if err != nil {
			return err
		}
		raw = append(raw, b)
	}
	version, err := s.docs.Save(storeID, raw)
	if err != nil {
		return err
	}
	log.Debug().Int64("version", version).Int("groups", len(groups)).Msg("Saved groups document")
	return nil
}

// Clear deletes the persisted group list.
func (s *SQLStore) Clear() error {
	return s.docs.Remove(storeID)
}
