package scene

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/lightdeck/internal/clock"
	"github.com/dokzlo13/lightdeck/internal/dispatch"
	"github.com/dokzlo13/lightdeck/internal/fixture"
	"github.com/dokzlo13/lightdeck/internal/group"
	"github.com/dokzlo13/lightdeck/internal/hue"
	"github.com/dokzlo13/lightdeck/internal/ledger"
	"github.com/dokzlo13/lightdeck/internal/pending"
)

type staticGroups map[string]group.Group

func (s staticGroups) Get(id string) (group.Group, bool) {
	g, ok := s[id]
	return g, ok
}

type fixedDelay time.Duration

func (d fixedDelay) FlashDelay() time.Duration { return time.Duration(d) }

type recorder struct {
	mu     sync.Mutex
	events []ledger.EventType
	synced [][]string
}

func (r *recorder) Record(eventType ledger.EventType, _ string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recorder) FixturesChanged(_ string, ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced = append(r.synced, ids)
}

type harness struct {
	clock   *clock.FakeClock
	bridge  *hue.MockBridge
	mirror  *fixture.Mirror
	pending *pending.Registry
	rec     *recorder
	engine  *Engine
}

func newHarness(t *testing.T, delay time.Duration, scenes ...group.Scene) *harness {
	t.Helper()
	bridge := hue.NewMockBridge()
	mirror := fixture.NewMirror()
	list, _ := bridge.Fixtures(context.Background())
	mirror.Refresh(list, nil)

	g := group.New("group-1", "Stage", 120)
	g.Fixtures = []string{"1", "2"}
	g.Scenes = scenes

	h := &harness{
		clock:  clock.Fake(time.Unix(0, 0)),
		bridge: bridge,
		mirror: mirror,
		rec:    &recorder{},
	}
	h.pending = pending.NewRegistry(h.clock)
	h.engine = New(Options{
		Groups:     staticGroups{g.ID: g},
		Dispatcher: dispatch.New(bridge, mirror, 0),
		Pending:    h.pending,
		Settings:   fixedDelay(delay),
		Notifier:   h.rec,
		History:    h.rec,
	})
	t.Cleanup(h.engine.Close)
	return h
}

func snapshot(flash bool) group.Scene {
	return group.Scene{
		ID:             "scene-a",
		Name:           "Warm",
		TransitionTime: 15,
		Flash:          flash,
		Fixtures: []group.SceneFixture{
			{ID: "1", State: fixture.State{On: true, Bri: 200}},
			{ID: "2", State: fixture.State{On: false}},
		},
	}
}

func TestRecallImmediate(t *testing.T) {
	h := newHarness(t, time.Second, snapshot(false))

	if !h.engine.Recall(context.Background(), "group-1", 0) {
		t.Fatal("scene not found")
	}

	for _, sf := range snapshot(false).Fixtures {
		f, _ := h.mirror.Get(sf.ID)
		if !reflect.DeepEqual(f.State, sf.State) {
			t.Errorf("fixture %s mirror = %+v, want %+v", sf.ID, f.State, sf.State)
		}
		calls := h.bridge.CallsFor(sf.ID)
		if len(calls) != 1 {
			t.Fatalf("fixture %s received %d commands", sf.ID, len(calls))
		}
		u := calls[0].Update
		if u.TransitionTime == nil || *u.TransitionTime != 15 || u.Alert != fixture.AlertNone {
			t.Errorf("fixture %s command = %+v", sf.ID, u)
		}
	}
	if _, ok := h.pending.Pending("group-1"); ok {
		t.Error("immediate recall left a pending action")
	}
	if len(h.rec.synced) != 1 {
		t.Errorf("refresh signals = %d", len(h.rec.synced))
	}
}

func TestRecallFailedFixtureKeepsMirror(t *testing.T) {
	h := newHarness(t, time.Second, snapshot(false))
	h.bridge.Fail("2", errors.New("unreachable"))
	before, _ := h.mirror.Get("2")

	h.engine.Recall(context.Background(), "group-1", 0)

	after, _ := h.mirror.Get("2")
	if !reflect.DeepEqual(before.State, after.State) {
		t.Errorf("failed fixture mirror changed to %+v", after.State)
	}
	if one, _ := h.mirror.Get("1"); one.State.Bri != 200 {
		t.Errorf("fixture 1 not overwritten: %+v", one.State)
	}
}

func TestRecallFlashThenSettle(t *testing.T) {
	h := newHarness(t, 2*time.Second, snapshot(true))

	h.engine.Recall(context.Background(), "group-1", 0)

	calls := h.bridge.CallsFor("1")
	if len(calls) != 1 {
		t.Fatalf("flash phase sent %d commands", len(calls))
	}
	if u := calls[0].Update; *u.TransitionTime != 1 || u.Alert != fixture.AlertLongSelect {
		t.Errorf("flash command = %+v", u)
	}
	if at, ok := h.pending.Pending("group-1"); !ok || !at.Equal(time.Unix(2, 0)) {
		t.Fatalf("pending = %v %v", at, ok)
	}
	if h.clock.PendingCount() != 1 {
		t.Errorf("scheduled %d deferred actions", h.clock.PendingCount())
	}

	h.clock.Advance(2 * time.Second)

	calls = h.bridge.CallsFor("1")
	if len(calls) != 2 {
		t.Fatalf("settle not sent, %d commands", len(calls))
	}
	if u := calls[1].Update; *u.TransitionTime != 15 || u.Alert != fixture.AlertNone {
		t.Errorf("settle command = %+v", u)
	}
	if _, ok := h.pending.Pending("group-1"); ok {
		t.Error("settle did not clear its slot")
	}
	if f, _ := h.mirror.Get("2"); f.State.On || f.State.Hue != nil {
		t.Errorf("fixture 2 not overwritten: %+v", f.State)
	}
	want := []ledger.EventType{ledger.EventSceneRecalled, ledger.EventSceneSettled}
	if !reflect.DeepEqual(h.rec.events, want) {
		t.Errorf("history = %v", h.rec.events)
	}
}

func TestRecallFlashCancelledByLaterIntent(t *testing.T) {
	h := newHarness(t, time.Second, snapshot(true))

	h.engine.Recall(context.Background(), "group-1", 0)
	h.pending.Cancel("group-1")
	h.clock.Advance(5 * time.Second)

	if calls := h.bridge.CallsFor("1"); len(calls) != 1 {
		t.Errorf("settle ran after cancellation: %d commands", len(calls))
	}
}

func TestRecallSupersedesPendingSettle(t *testing.T) {
	flash := snapshot(true)
	plain := snapshot(false)
	plain.Fixtures = []group.SceneFixture{{ID: "1", State: fixture.State{On: true, Bri: 50}}}
	h := newHarness(t, time.Second, flash, plain)

	h.engine.Recall(context.Background(), "group-1", 0)
	h.engine.Recall(context.Background(), "group-1", 1)
	h.clock.Advance(time.Second)

	if f, _ := h.mirror.Get("1"); f.State.Bri != 50 {
		t.Errorf("stale settle overwrote newer scene: %+v", f.State)
	}
	if h.rec.events[1] != ledger.EventFlashCancelled {
		t.Errorf("history = %v", h.rec.events)
	}
}

func TestRecallMissingIsNoop(t *testing.T) {
	h := newHarness(t, time.Second, snapshot(false))

	if h.engine.Recall(context.Background(), "group-9", 0) {
		t.Error("missing group recalled")
	}
	if h.engine.Recall(context.Background(), "group-1", 3) {
		t.Error("missing scene recalled")
	}
	if h.engine.Recall(context.Background(), "group-1", -1) {
		t.Error("negative index recalled")
	}
	if len(h.bridge.Calls()) != 0 {
		t.Error("commands sent for missing scene")
	}
}

func TestClampFlashDelay(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{-time.Second, 0},
		{0, 0},
		{1500 * time.Millisecond, 1500 * time.Millisecond},
		{15 * time.Second, 15 * time.Second},
		{time.Minute, 15 * time.Second},
	}
	for _, tt := range tests {
		if got := ClampFlashDelay(tt.in); got != tt.want {
			t.Errorf("ClampFlashDelay(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCapture(t *testing.T) {
	mirror := fixture.NewMirror()
	mirror.Refresh([]fixture.Fixture{
		{ID: "1", State: fixture.State{On: true, Bri: 90, Alert: fixture.AlertSelect}},
		{ID: "2", State: fixture.State{On: false}},
	}, nil)

	g := group.New("group-1", "Stage", 120)
	g.Fixtures = []string{"1", "2", "ghost"}
	g.Scenes = []group.Scene{{Name: "First"}}

	s := Capture(g, mirror, "", nil, true)
	if s.Name != "Scene 2" || s.TransitionTime != DefaultTransition || !s.Flash || s.ID == "" {
		t.Errorf("scene = %+v", s)
	}
	if len(s.Fixtures) != 2 {
		t.Fatalf("captured %d fixtures", len(s.Fixtures))
	}
	if s.Fixtures[0].State.Alert != "" {
		t.Error("alert not stripped")
	}

	named := Capture(g, mirror, "Blackout", fixture.Ptr(uint16(0)), false)
	if named.Name != "Blackout" || named.TransitionTime != 0 {
		t.Errorf("named scene = %+v", named)
	}
}
