package kv

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/dokzlo13/lightdeck/internal/db"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewManager(database.DB)
}

func TestBuckets(t *testing.T) {
	m := newManager(t)

	for _, persistent := range []bool{true, false} {
		name := "settings"
		if !persistent {
			name = "scratch"
		}
		t.Run(name, func(t *testing.T) {
			b := m.Bucket(name, persistent)
			if b.IsPersistent() != persistent {
				t.Fatalf("persistent = %v", b.IsPersistent())
			}

			var missing int
			if ok, err := b.Load("flash_delay", &missing); ok || err != nil {
				t.Errorf("missing key = %v, %v", ok, err)
			}

			if err := b.Store("flash_delay", 2500, 0); err != nil {
				t.Fatalf("store: %v", err)
			}
			if err := b.Store("last", map[string]any{"scene": "Warm"}, 0); err != nil {
				t.Fatalf("store: %v", err)
			}
			if got := LoadInt(b, "flash_delay", 1000); got != 2500 {
				t.Errorf("flash_delay = %d", got)
			}

			var last map[string]string
			if ok, err := b.Load("last", &last); !ok || err != nil || last["scene"] != "Warm" {
				t.Errorf("last = %v (%v, %v)", last, ok, err)
			}

			keys, _ := b.Keys()
			if !reflect.DeepEqual(keys, []string{"flash_delay", "last"}) {
				t.Errorf("keys = %v", keys)
			}

			if existed, _ := b.Delete("last"); !existed {
				t.Error("delete reported missing key")
			}
			if existed, _ := b.Delete("last"); existed {
				t.Error("second delete reported existing key")
			}
			if err := b.Clear(); err != nil {
				t.Fatal(err)
			}
			if keys, _ := b.Keys(); len(keys) != 0 {
				t.Errorf("keys after clear = %v", keys)
			}
		})
	}
}

func TestBucketIsShared(t *testing.T) {
	m := newManager(t)
	if m.Bucket("a", true) != m.Bucket("a", false) {
		t.Error("manager returned a different bucket for the same name")
	}
}

func TestMemoryExpiry(t *testing.T) {
	b := NewMemoryBucket("scratch")
	now := time.Unix(100, 0)
	b.now = func() time.Time { return now }

	b.Store("k", "v", time.Second)
	now = now.Add(2 * time.Second)

	var v string
	if ok, _ := b.Load("k", &v); ok {
		t.Error("expired value returned")
	}

	b.Store("a", 1, time.Second)
	b.Store("b", 2, 0)
	now = now.Add(time.Minute)
	if n := b.CleanupExpired(); n != 1 {
		t.Errorf("cleaned %d", n)
	}
}

func TestLoadIntFallback(t *testing.T) {
	b := NewMemoryBucket("s")
	b.Store("bad", "not a number", 0)
	if got := LoadInt(b, "bad", 7); got != 7 {
		t.Errorf("got %d", got)
	}
	if got := LoadInt(b, "missing", 9); got != 9 {
		t.Errorf("got %d", got)
	}
}
