package storage

import (
	"path/filepath"
	"testing"

	"github.com/dokzlo13/lightdeck/internal/db"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database.DB)
}

func TestStoreVersioning(t *testing.T) {
	s := openStore(t)

	doc, err := s.Load("panel", "missing")
	if err != nil || doc.Payload != nil || doc.Version != 0 {
		t.Fatalf("missing doc: %+v err=%v", doc, err)
	}

	for i := int64(1); i <= 3; i++ {
		version, err := s.Save("panel", "groups", []byte(`[]`))
		if err != nil {
			t.Fatal(err)
		}
		if version != i {
			t.Fatalf("write %d: version = %d", i, version)
		}
	}

	doc, err = s.Load("panel", "groups")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Version != 3 || string(doc.Payload) != "[]" || doc.UpdatedAt.IsZero() {
		t.Errorf("loaded %+v", doc)
	}
}

func TestStoreRemoveAndPurge(t *testing.T) {
	s := openStore(t)
	s.Save("a", "1", []byte(`1`))
	s.Save("a", "2", []byte(`2`))
	s.Save("b", "1", []byte(`3`))

	if ok, err := s.Remove("a", "1"); err != nil || !ok {
		t.Fatalf("remove existing: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Remove("a", "1"); ok {
		t.Error("second remove reported a document")
	}

	if n, err := s.Purge("a"); err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
	if doc, _ := s.Load("b", "1"); doc.Version != 1 {
		t.Error("kind b should survive a purge of kind a")
	}
}

func TestTyped(t *testing.T) {
	type scene struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	ts := NewTyped[scene](openStore(t), "scene")

	if v, err := ts.Save("x", scene{Name: "x", Count: 2}); err != nil || v != 1 {
		t.Fatalf("save: v=%d err=%v", v, err)
	}
	got, version, err := ts.Load("x")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "x" || got.Count != 2 || version != 1 {
		t.Errorf("got %+v version %d", got, version)
	}

	if err := ts.Remove("x"); err != nil {
		t.Fatal(err)
	}
	if got, version, _ := ts.Load("x"); got.Name != "" || version != 0 {
		t.Errorf("expected zero value after remove, got %+v v%d", got, version)
	}
}
