package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	b := New()

	var mu sync.Mutex
	var got []Event
	var wg sync.WaitGroup
	wg.Add(2)
	handler := func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		wg.Done()
	}
	b.Subscribe(EventFixturesChanged, handler)
	b.Subscribe(EventGroupsChanged, handler)

	ids := []string{"1", "2"}
	b.FixturesChanged("group-1", ids)
	ids[0] = "mutated"
	b.GroupsChanged()
	wg.Wait()
	b.Close(context.Background())

	if len(got) != 2 {
		t.Fatalf("delivered %d events", len(got))
	}
	for _, e := range got {
		if e.Type == EventFixturesChanged && (e.Group != "group-1" || e.Fixtures[0] != "1") {
			t.Errorf("fixtures event = %+v", e)
		}
	}
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	b := NewWithConfig(1, 1)
	called := false
	b.Subscribe(EventGroupsChanged, func(Event) { called = true })

	b.Close(context.Background())
	b.Close(context.Background())
	b.GroupsChanged()

	if called {
		t.Error("handler ran after close")
	}
}

func TestHandlerPanicDoesNotKillWorker(t *testing.T) {
	b := NewWithConfig(1, 4)
	done := make(chan struct{})
	first := true
	b.Subscribe(EventGroupsChanged, func(Event) {
		if first {
			first = false
			panic("boom")
		}
		close(done)
	})

	b.GroupsChanged()
	b.GroupsChanged()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after panic")
	}
	b.Close(context.Background())
}

func TestEventWireFormat(t *testing.T) {
	data, err := json.Marshal(Event{Type: EventGroupsChanged})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"type":"groups_changed"}` {
		t.Errorf("wire = %s", data)
	}

	data, _ = json.Marshal(Event{Type: EventFixturesChanged, Group: "g", Fixtures: []string{"1"}})
	if string(data) != `{"type":"fixtures_changed","group":"g","fixtures":["1"]}` {
		t.Errorf("wire = %s", data)
	}
}
