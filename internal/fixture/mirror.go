package fixture

import (
	"sort"
	"strconv"
	"sync"
)

// Fixture is a light as seen by the panel.
type Fixture struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	ModelID   string `json:"modelid,omitempty"`
	Reachable bool   `json:"reachable"`
	State     State  `json:"state"`

	// Active marks the fixture as included in group-wide commands. It is
	// a local selection flag, unrelated to power.
	Active bool `json:"active"`
}

// Mirror holds the last known state of every fixture. It is written
// optimistically after accepted commands and replaced on refresh.
type Mirror struct {
	mu       sync.RWMutex
	fixtures map[string]*Fixture
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{fixtures: make(map[string]*Fixture)}
}

// Get returns a copy of the fixture.
func (m *Mirror) Get(id string) (Fixture, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.fixtures[id]
	if !ok {
		return Fixture{}, false
	}
	return *f, true
}

// Has reports whether the fixture is known.
func (m *Mirror) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.fixtures[id]
	return ok
}

// List returns all fixtures ordered by id.
func (m *Mirror) List() []Fixture {
	m.mu.RLock()
	out := make([]Fixture, 0, len(m.fixtures))
	for _, f := range m.fixtures {
		out = append(out, *f)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

// IDs returns all known fixture ids ordered by id.
func (m *Mirror) IDs() []string {
	list := m.List()
	ids := make([]string, len(list))
	for i, f := range list {
		ids[i] = f.ID
	}
	return ids
}

// Apply merges u into the fixture's state. Returns false for unknown ids.
func (m *Mirror) Apply(id string, u Update) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.fixtures[id]
	if !ok {
		return false
	}
	f.State = Merge(f.State, u)
	return true
}

// Overwrite replaces the fixture's state verbatim.
func (m *Mirror) Overwrite(id string, s State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.fixtures[id]
	if !ok {
		return false
	}
	f.State = s
	return true
}

// Refresh replaces the table with a fresh discovery result. Active flags
// survive, new fixtures start active, and fixtures for which keepLocal
// returns true keep their mirrored state.
func (m *Mirror) Refresh(discovered []Fixture, keepLocal func(id string) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]*Fixture, len(discovered))
	for _, d := range discovered {
		f := d
		f.Active = true
		if prev, ok := m.fixtures[f.ID]; ok {
			f.Active = prev.Active
			if keepLocal != nil && keepLocal(f.ID) {
				f.State = prev.State
			}
		}
		next[f.ID] = &f
	}
	m.fixtures = next
}

// SetActive changes the selection flag. Returns false for unknown ids.
func (m *Mirror) SetActive(id string, active bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.fixtures[id]
	if !ok {
		return false
	}
	f.Active = active
	return true
}

// Active filters ids down to known, active fixtures, keeping their order.
func (m *Mirror) Active(ids []string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if f, ok := m.fixtures[id]; ok && f.Active {
			out = append(out, id)
		}
	}
	return out
}

// lessID orders numeric ids numerically and everything else lexically.
func lessID(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
