package group

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dokzlo13/lightdeck/internal/db"
	"github.com/dokzlo13/lightdeck/internal/fixture"
	"github.com/dokzlo13/lightdeck/internal/storage"
)

type memStore struct {
	groups []Group
	err    error
	saves  int
}

func (m *memStore) Load() ([]Group, error) { return m.groups, m.err }

func (m *memStore) Save(groups []Group) error {
	m.groups = groups
	m.saves++
	return nil
}

func ids(groups []Group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.ID
	}
	return out
}

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry(&memStore{})
	r.Load(100)

	list := r.List()
	if len(list) != 1 || list[0].ID != UnassignedID || list[0].Name != "Unassigned Lights" {
		t.Fatalf("unexpected default groups %+v", list)
	}
	if err := r.Delete(UnassignedID); !errors.Is(err, ErrUndeletable) {
		t.Errorf("deleting default group: got %v", err)
	}
}

func TestRegistryLoadFailureFallsBack(t *testing.T) {
	r := NewRegistry(&memStore{err: errors.New("boom")})
	r.Load(120)
	if got := ids(r.List()); !reflect.DeepEqual(got, []string{UnassignedID}) {
		t.Errorf("got %v", got)
	}
}

func TestRegistryCreateNames(t *testing.T) {
	store := &memStore{}
	r := NewRegistry(store)
	r.Load(120)

	a := r.Create("", 120)
	b := r.Create("", 120)
	c := r.Create("Stage", 90)

	if a.ID != "group-1" || b.ID != "group-2" || c.ID != "group-3" {
		t.Errorf("unexpected ids %s %s %s", a.ID, b.ID, c.ID)
	}
	if a.Name != "Group" || b.Name != "Group (2)" || c.Name != "Stage" {
		t.Errorf("unexpected names %q %q %q", a.Name, b.Name, c.Name)
	}
	if c.Tempo != 90 || !c.TempoLocked || c.ChaseMode != ChaseOff || c.Brightness != 254 {
		t.Errorf("unexpected defaults %+v", c)
	}
	if store.saves != 3 {
		t.Errorf("expected 3 saves, got %d", store.saves)
	}

	renamed, ok := r.Rename(c.ID, "Group")
	if !ok || renamed.Name != "Group (3)" {
		t.Errorf("rename to taken name: %+v", renamed)
	}
	if renamed, _ := r.Rename(c.ID, "  "); renamed.Name != "Group (3)" {
		t.Errorf("blank rename should keep name, got %q", renamed.Name)
	}
}

func TestRegistryCounterResumesAfterLoad(t *testing.T) {
	store := &memStore{groups: []Group{{ID: "group-7", Name: "Seven"}}}
	r := NewRegistry(store)
	r.Load(120)

	if got := ids(r.List()); !reflect.DeepEqual(got, []string{UnassignedID, "group-7"}) {
		t.Fatalf("got %v", got)
	}
	if g := r.Create("", 120); g.ID != "group-8" {
		t.Errorf("expected group-8, got %s", g.ID)
	}
}

func TestRegistryReorder(t *testing.T) {
	r := NewRegistry(&memStore{})
	r.Load(120)
	r.Create("a", 120)
	r.Create("b", 120)
	r.Create("c", 120)

	if !r.Reorder("group-3", "group-1") {
		t.Fatal("reorder failed")
	}
	want := []string{UnassignedID, "group-3", "group-1", "group-2"}
	if got := ids(r.List()); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if r.Reorder("group-1", "group-1") || r.Reorder("nope", "group-1") {
		t.Error("no-op reorders should report false")
	}
}

func TestRegistryReconcileAndMove(t *testing.T) {
	r := NewRegistry(&memStore{})
	r.Load(120)
	g := r.Create("", 120)

	r.Reconcile([]string{"1", "2", "3"})
	if !r.MoveFixture("2", g.ID) {
		t.Fatal("move failed")
	}

	un, _ := r.Get(UnassignedID)
	if !reflect.DeepEqual(un.Fixtures, []string{"1", "3"}) {
		t.Errorf("unassigned fixtures = %v", un.Fixtures)
	}

	// fixture 3 disappears, 4 shows up
	if !r.Reconcile([]string{"1", "2", "4"}) {
		t.Fatal("expected a change")
	}
	un, _ = r.Get(UnassignedID)
	if !reflect.DeepEqual(un.Fixtures, []string{"1", "4"}) {
		t.Errorf("unassigned fixtures = %v", un.Fixtures)
	}
	if owner, _ := r.GroupOf("2"); owner != g.ID {
		t.Errorf("fixture 2 owned by %s", owner)
	}
	if r.Reconcile([]string{"1", "2", "4"}) {
		t.Error("second reconcile should be a no-op")
	}

	// deleting a group orphans its fixtures until the next reconcile
	if err := r.Delete(g.ID); err != nil {
		t.Fatal(err)
	}
	r.Reconcile([]string{"1", "2", "4"})
	un, _ = r.Get(UnassignedID)
	if !reflect.DeepEqual(un.Fixtures, []string{"1", "4", "2"}) {
		t.Errorf("unassigned fixtures = %v", un.Fixtures)
	}
}

func TestRegistryGlobalTempo(t *testing.T) {
	r := NewRegistry(&memStore{})
	r.Load(120)
	a := r.Create("", 120)
	b := r.Create("", 120)
	r.Update(b.ID, func(g *Group) {
		g.Tempo = 60
		g.TempoLocked = false
	})

	changed := r.ApplyGlobalTempo(90)
	if !reflect.DeepEqual(changed, []string{UnassignedID, a.ID}) {
		t.Errorf("changed = %v", changed)
	}
	if got, _ := r.Get(b.ID); got.Tempo != 60 {
		t.Errorf("unlocked group tempo changed to %d", got.Tempo)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := NewRegistry(&memStore{})
	r.Load(120)
	r.Reconcile([]string{"1"})

	g, _ := r.Get(UnassignedID)
	g.Fixtures[0] = "changed"
	again, _ := r.Get(UnassignedID)
	if again.Fixtures[0] != "1" {
		t.Error("Get leaked internal slice")
	}
}

func TestSQLStoreRoundTrip(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "groups.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	store := NewSQLStore(storage.NewStore(database.DB))

	r := NewRegistry(store)
	r.Load(120)
	g := r.Create("Stage", 100)
	r.Update(g.ID, func(g *Group) {
		g.ChaseMode = ChaseRipple
		g.Scenes = append(g.Scenes, Scene{
			ID:             "s1",
			Name:           "Scene 1",
			TransitionTime: 15,
			Flash:          true,
			Fixtures: []SceneFixture{
				{ID: "1", State: fixture.State{On: true, Bri: 200}},
			},
		})
	})

	restored := NewRegistry(store)
	restored.Load(120)
	got, ok := restored.Get(g.ID)
	if !ok {
		t.Fatal("group not restored")
	}
	want, _ := r.Get(g.ID)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("restored %+v, want %+v", got, want)
	}
}

func TestSQLStoreSkipsMalformedGroups(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "groups.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	base := storage.NewStore(database.DB)
	base.Save(storeKind, storeID, []byte(`[{"id":"group-1","name":"ok"},{"id":5},"junk"]`))

	groups, err := NewSQLStore(base).Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].ID != "group-1" {
		t.Errorf("got %+v", groups)
	}
}

func TestRegistryScenes(t *testing.T) {
	r := NewRegistry(&memStore{})
	g := r.Create("Stage", DefaultTempo)

	for _, name := range []string{"A", "B", "C"} {
		if _, err := r.AddScene(g.ID, Scene{Name: name}); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	if err := r.DeleteScene(g.ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, _ := r.Get(g.ID)
	if len(got.Scenes) != 2 || got.Scenes[0].Name != "A" || got.Scenes[1].Name != "C" {
		t.Errorf("scenes = %+v", got.Scenes)
	}

	if err := r.DeleteScene(g.ID, 5); !errors.Is(err, ErrSceneMissing) {
		t.Errorf("out of range delete = %v", err)
	}
	if err := r.DeleteScene("group-99", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing group delete = %v", err)
	}
	if _, err := r.AddScene("group-99", Scene{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing group add = %v", err)
	}
}
