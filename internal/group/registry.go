package group

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound     = errors.New("group not found")
	ErrUndeletable  = errors.New("group cannot be deleted")
	ErrSceneMissing = errors.New("scene not found")
)

// Store persists the ordered group list.
type Store interface {
	Load() ([]Group, error)
	Save(groups []Group) error
}

// Registry owns the ordered list of groups. All accessors return copies;
// mutations go through the registry and are persisted immediately.
type Registry struct {
	mu      sync.RWMutex
	groups  []*Group
	store   Store
	counter int
}

// NewRegistry creates a registry holding only the unassigned group.
// Call Load to restore persisted groups.
func NewRegistry(store Store) *Registry {
	r := &Registry{store: store, counter: 1}
	r.groups = []*Group{defaultGroup(DefaultTempo)}
	return r
}

func defaultGroup(tempo int) *Group {
	g := New(UnassignedID, unassignedName, tempo)
	return &g
}

// Load restores groups from the store. Load failures fall back to the
// default group and are only logged.
func (r *Registry) Load(tempo int) {
	var loaded []Group
	if r.store != nil {
		var err error
		loaded, err = r.store.Load()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load groups, starting with defaults")
			loaded = nil
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.groups = r.groups[:0]
	seen := make(map[string]bool)
	hasDefault := false
	for _, g := range loaded {
		if g.ID == "" || seen[g.ID] {
			log.Warn().Str("group", g.ID).Msg("Skipping group with missing or duplicate id")
			continue
		}
		seen[g.ID] = true
		g.normalize()
		if g.Tempo <= 0 {
			g.Tempo = tempo
		}
		if g.ID == UnassignedID {
			hasDefault = true
		}
		gg := g.Clone()
		r.groups = append(r.groups, &gg)
	}
	if !hasDefault {
		r.groups = append([]*Group{defaultGroup(tempo)}, r.groups...)
	}

	r.counter = 1
	for _, g := range r.groups {
		if n, ok := groupNumber(g.ID); ok && n >= r.counter {
			r.counter = n + 1
		}
	}

	log.Info().Int("groups", len(r.groups)).Msg("Groups loaded")
}

func groupNumber(id string) (int, bool) {
	if id == UnassignedID || !strings.HasPrefix(id, "group-") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, "group-"))
	return n, err == nil
}

// Get returns a copy of a group.
func (r *Registry) Get(id string) (Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if g := r.find(id); g != nil {
		return g.Clone(), true
	}
	return Group{}, false
}

// List returns copies of all groups in display order.
func (r *Registry) List() []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Group, len(r.groups))
	for i, g := range r.groups {
		out[i] = g.Clone()
	}
	return out
}

// Create appends a new group. An empty name becomes "Group"; duplicate
// names get a numeric suffix.
func (r *Registry) Create(name string, tempo int) Group {
	r.mu.Lock()
	defer r.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	id := fmt.Sprintf("group-%d", r.counter)
	r.counter++

	g := New(id, r.uniqueName(name, ""), tempo)
	r.groups = append(r.groups, &g)
	r.save()

	return g.Clone()
}

// Delete removes a group. Its fixtures become orphans until the next Reconcile.
func (r *Registry) Delete(id string) error {
	if id == UnassignedID {
		return ErrUndeletable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return ErrNotFound
	}
	r.groups = append(r.groups[:i], r.groups[i+1:]...)
	r.save()
	return nil
}

// Rename changes the display name. Blank names are ignored.
func (r *Registry) Rename(id, name string) (Group, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.find(id)
	if g == nil {
		return Group{}, false
	}
	if name = strings.TrimSpace(name); name != "" {
		g.Name = r.uniqueName(name, id)
		r.save()
	}
	return g.Clone(), true
}

// Update applies fn to the group and persists the result.
func (r *Registry) Update(id string, fn func(g *Group)) (Group, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.find(id)
	if g == nil {
		return Group{}, false
	}
	fn(g)
	g.normalize()
	r.save()
	return g.Clone(), true
}

// AddScene appends a scene to the group and returns its index.
func (r *Registry) AddScene(id string, s Scene) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.find(id)
	if g == nil {
		return 0, ErrNotFound
	}
	g.Scenes = append(g.Scenes, s)
	r.save()
	return len(g.Scenes) - 1, nil
}

// DeleteScene removes the scene at index.
func (r *Registry) DeleteScene(id string, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.find(id)
	if g == nil {
		return ErrNotFound
	}
	if index < 0 || index >= len(g.Scenes) {
		return ErrSceneMissing
	}
	g.Scenes = append(g.Scenes[:index], g.Scenes[index+1:]...)
	r.save()
	return nil
}

// MoveFixture removes the fixture from every group and appends it to groupID.
func (r *Registry) MoveFixture(fixtureID, groupID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := r.find(groupID)
	if target == nil {
		return false
	}
	for _, g := range r.groups {
		g.Fixtures = without(g.Fixtures, fixtureID)
	}
	target.Fixtures = append(target.Fixtures, fixtureID)
	r.save()
	return true
}

// Reorder moves the dragged group to the target group's position.
func (r *Registry) Reorder(draggedID, targetID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	from, to := r.index(draggedID), r.index(targetID)
	if from < 0 || to < 0 || from == to {
		return false
	}
	dragged := r.groups[from]
	r.groups = append(r.groups[:from], r.groups[from+1:]...)
	r.groups = append(r.groups[:to], append([]*Group{dragged}, r.groups[to:]...)...)
	r.save()
	return true
}

// Reconcile drops fixtures that are no longer known and assigns every
// known but ungrouped fixture to the unassigned group. Returns whether
// anything changed.
func (r *Registry) Reconcile(known []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists := make(map[string]bool, len(known))
	for _, id := range known {
		exists[id] = true
	}

	changed := false
	assigned := make(map[string]bool)
	for _, g := range r.groups {
		kept := g.Fixtures[:0]
		for _, id := range g.Fixtures {
			if exists[id] && !assigned[id] {
				kept = append(kept, id)
				assigned[id] = true
			} else {
				changed = true
			}
		}
		g.Fixtures = kept
	}

	unassigned := r.find(UnassignedID)
	for _, id := range known {
		if !assigned[id] {
			unassigned.Fixtures = append(unassigned.Fixtures, id)
			changed = true
		}
	}

	if changed {
		r.save()
	}
	return changed
}

// GroupOf returns the id of the group holding the fixture.
func (r *Registry) GroupOf(fixtureID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, g := range r.groups {
		for _, id := range g.Fixtures {
			if id == fixtureID {
				return g.ID, true
			}
		}
	}
	return "", false
}

// ApplyGlobalTempo sets the tempo of every locked group and returns the
// ids whose tempo actually changed.
func (r *Registry) ApplyGlobalTempo(tempo int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []string
	for _, g := range r.groups {
		if g.TempoLocked && g.Tempo != tempo {
			g.Tempo = tempo
			changed = append(changed, g.ID)
		}
	}
	if len(changed) > 0 {
		r.save()
	}
	return changed
}

func (r *Registry) find(id string) *Group {
	if i := r.index(id); i >= 0 {
		return r.groups[i]
	}
	return nil
}

func (r *Registry) index(id string) int {
	for i, g := range r.groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// uniqueName must be called with r.mu held.
func (r *Registry) uniqueName(name, exclude string) string {
	taken := func(n string) bool {
		for _, g := range r.groups {
			if g.Name == n && g.ID != exclude {
				return true
			}
		}
		return false
	}
	candidate := name
	for i := 2; taken(candidate); i++ {
		candidate = fmt.Sprintf("%s (%d)", name, i)
	}
	return candidate
}

// save must be called with r.mu held.
func (r *Registry) save() {
	if r.store == nil {
		return
	}
	snapshot := make([]Group, len(r.groups))
	for i, g := range r.groups {
		snapshot[i] = g.Clone()
	}
	if err := r.store.Save(snapshot); err != nil {
		log.Warn().Err(err).Msg("Failed to persist groups")
	}
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
