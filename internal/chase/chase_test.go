package chase

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/lightdeck/internal/clock"
	"github.com/dokzlo13/lightdeck/internal/dispatch"
	"github.com/dokzlo13/lightdeck/internal/fixture"
	"github.com/dokzlo13/lightdeck/internal/group"
	"github.com/dokzlo13/lightdeck/internal/hue"
)

type fakeGroups struct {
	mu     sync.Mutex
	groups map[string]group.Group
}

func (f *fakeGroups) Get(id string) (group.Group, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	return g.Clone(), ok
}

func (f *fakeGroups) Update(id string, fn func(g *group.Group)) (group.Group, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return group.Group{}, false
	}
	fn(&g)
	f.groups[id] = g
	return g.Clone(), true
}

type recordingNotifier struct {
	mu    sync.Mutex
	ticks int
}

func (n *recordingNotifier) FixturesChanged(string, []string) {
	n.mu.Lock()
	n.ticks++
	n.mu.Unlock()
}

type harness struct {
	clock    *clock.FakeClock
	groups   *fakeGroups
	bridge   *hue.MockBridge
	notifier *recordingNotifier
	engine   *Engine
}

func newHarness(t *testing.T, mode group.ChaseMode, fixtures ...string) *harness {
	t.Helper()
	bridge := hue.NewMockBridge()
	mirror := fixture.NewMirror()
	list, _ := bridge.Fixtures(context.Background())
	mirror.Refresh(list, nil)

	g := group.New("group-1", "Stage", 120)
	g.Fixtures = fixtures
	g.ChaseMode = mode
	g.Brightness = 200

	h := &harness{
		clock:    clock.Fake(time.Unix(0, 0)),
		groups:   &fakeGroups{groups: map[string]group.Group{g.ID: g}},
		bridge:   bridge,
		notifier: &recordingNotifier{},
	}
	h.engine = New(h.clock, h.groups, dispatch.New(bridge, mirror, 0), h.notifier)
	t.Cleanup(h.engine.Close)
	return h
}

// tick advances one chase interval at tempo 120 and waits for the sends.
func (h *harness) tick() {
	h.clock.Advance(500 * time.Millisecond)
	h.engine.Wait()
}

func (h *harness) litFixture(t *testing.T) string {
	t.Helper()
	g, _ := h.groups.Get("group-1")
	var lit []string
	for _, id := range g.Fixtures {
		if f, _ := h.engine.dispatcher.Mirror().Get(id); f.State.On {
			lit = append(lit, id)
		}
	}
	if len(lit) != 1 {
		t.Fatalf("expected exactly one lit fixture, got %v", lit)
	}
	return lit[0]
}

func TestStepSingleFixtureModes(t *testing.T) {
	tests := []struct {
		name string
		mode group.ChaseMode
		want []int
	}{
		{"right", group.ChaseRight, []int{0, 1, 2, 0, 1}},
		{"left", group.ChaseLeft, []int{0, 2, 1, 0, 2}},
		{"ping-pong", group.ChasePingPong, []int{0, 1, 2, 1, 0, 1, 2}},
	}

	fixtures := []string{"a", "b", "c"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRun()
			var got []int
			for range tt.want {
				cmds := fixture.Coalesce(r.Step(tt.mode, fixtures, nil, 200))
				for i, c := range cmds {
					if c.Update.On != nil && *c.Update.On {
						got = append(got, i)
					}
				}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("lit order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStepClassicLightsPair(t *testing.T) {
	r := NewRun()
	fixtures := []string{"a", "b", "c"}

	cmds := fixture.Coalesce(r.Step(group.ChaseClassic, fixtures, nil, 150))
	lit := map[string]bool{}
	for _, c := range cmds {
		if *c.Update.On {
			lit[c.FixtureID] = true
			if *c.Update.Bri != 150 {
				t.Errorf("%s brightness = %d", c.FixtureID, *c.Update.Bri)
			}
		}
	}
	if !reflect.DeepEqual(lit, map[string]bool{"a": true, "b": true}) {
		t.Errorf("first tick lit %v", lit)
	}

	r.Index = 2
	cmds = fixture.Coalesce(r.Step(group.ChaseClassic, fixtures, nil, 150))
	lit = map[string]bool{}
	for _, c := range cmds {
		if *c.Update.On {
			lit[c.FixtureID] = true
		}
	}
	if !reflect.DeepEqual(lit, map[string]bool{"c": true, "a": true}) {
		t.Errorf("wrapping tick lit %v", lit)
	}
}

func brightnessOf(cmds []fixture.Command) map[string]uint8 {
	out := map[string]uint8{}
	for _, c := range cmds {
		if c.Update.Bri != nil {
			out[c.FixtureID] = *c.Update.Bri
		}
	}
	return out
}

func TestStepRippleFillsTrail(t *testing.T) {
	r := NewRun()
	fixtures := []string{"a", "b", "c", "d", "e"}

	steps := []map[string]uint8{
		{"a": 200},
		{"a": 120, "b": 200},
		{"a": 20, "b": 120, "c": 200},
	}
	for i, want := range steps {
		cmds := r.Step(group.ChaseRipple, fixtures, nil, 200)
		for _, c := range cmds {
			if c.Update.On != nil && !*c.Update.On {
				t.Errorf("tick %d turned %s off before the trail was full", i+1, c.FixtureID)
			}
		}
		if got := brightnessOf(cmds); !reflect.DeepEqual(got, want) {
			t.Errorf("tick %d brightness = %v, want %v", i+1, got, want)
		}
	}
}

func TestStepRippleTrail(t *testing.T) {
	r := NewRun()
	fixtures := []string{"a", "b", "c", "d", "e"}

	var offs []string
	var last []fixture.Command
	for i := 0; i < 4; i++ {
		last = r.Step(group.ChaseRipple, fixtures, nil, 200)
		for _, c := range last {
			if c.Update.On != nil && !*c.Update.On {
				offs = append(offs, c.FixtureID)
			}
		}
	}

	if !reflect.DeepEqual(r.Trail, []int{1, 2, 3}) {
		t.Errorf("trail = %v", r.Trail)
	}
	if !reflect.DeepEqual(offs, []string{"a"}) {
		t.Errorf("off commands = %v", offs)
	}

	bri := brightnessOf(last)
	want := map[string]uint8{"b": 20, "c": 120, "d": 200}
	if !reflect.DeepEqual(bri, want) {
		t.Errorf("ripple brightness = %v, want %v", bri, want)
	}
}

func TestStepRippleMinimumBrightness(t *testing.T) {
	r := NewRun()
	fixtures := []string{"a", "b", "c"}
	var last []fixture.Command
	for i := 0; i < 3; i++ {
		last = r.Step(group.ChaseRipple, fixtures, nil, 5)
	}
	for _, c := range last {
		if c.Update.Bri != nil && *c.Update.Bri < 1 {
			t.Errorf("%s brightness %d below minimum", c.FixtureID, *c.Update.Bri)
		}
	}
}

func TestStepRotateShiftsStates(t *testing.T) {
	states := map[string]fixture.State{
		"a": {On: true, Bri: 10},
		"b": {On: true, Bri: 20},
	}
	lookup := func(id string) (fixture.State, bool) {
		s, ok := states[id]
		return s, ok
	}

	r := NewRun()
	cmds := r.Step(group.ChaseRotate, []string{"a", "b", "c"}, lookup, 254)
	got := map[string]fixture.Update{}
	for _, c := range cmds {
		got[c.FixtureID] = c.Update
	}

	if !*got["b"].On || *got["b"].Bri != 10 {
		t.Errorf("b should take a's state, got %+v", got["b"])
	}
	if got["c"].Bri == nil || *got["c"].Bri != 20 {
		t.Errorf("c should take b's state, got %+v", got["c"])
	}
	if *got["a"].On {
		t.Errorf("a should take c's missing state (off), got %+v", got["a"])
	}
	if r.Index != 0 {
		t.Errorf("rotate moved the index to %d", r.Index)
	}
}

func TestStepEmptyGroup(t *testing.T) {
	if cmds := NewRun().Step(group.ChaseRight, nil, nil, 200); len(cmds) != 0 {
		t.Errorf("empty group produced %d commands", len(cmds))
	}
}

func TestEngineRightChase(t *testing.T) {
	h := newHarness(t, group.ChaseRight, "1", "2", "3")
	if !h.engine.Start("group-1") {
		t.Fatal("chase did not start")
	}

	for _, want := range []string{"1", "2", "3", "1"} {
		h.tick()
		if got := h.litFixture(t); got != want {
			t.Fatalf("lit %s, want %s", got, want)
		}
	}
	if h.notifier.ticks != 4 {
		t.Errorf("notified %d ticks", h.notifier.ticks)
	}
	if h.bridge.CallsFor("4") != nil {
		t.Error("fixture outside the group was addressed")
	}
}

func TestEngineCoalescesPerFixture(t *testing.T) {
	h := newHarness(t, group.ChaseRight, "1", "2", "3")
	h.engine.Start("group-1")
	h.tick()

	calls := h.bridge.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected one command per fixture, got %d", len(calls))
	}
	for _, c := range h.bridge.CallsFor("1") {
		if !*c.Update.On || *c.Update.Bri != 200 {
			t.Errorf("lit fixture got %+v", c.Update)
		}
	}
}

func TestEngineStartWhileRunningIsNoop(t *testing.T) {
	h := newHarness(t, group.ChaseRight, "1", "2", "3")
	h.engine.Start("group-1")
	h.tick()

	run := h.engine.runFor("group-1")
	pending := h.clock.PendingCount()

	if h.engine.Start("group-1") {
		t.Error("second start reported a new run")
	}
	if h.engine.runFor("group-1") != run {
		t.Error("run state was replaced")
	}
	if h.clock.PendingCount() != pending {
		t.Errorf("timers = %d, want %d", h.clock.PendingCount(), pending)
	}
	if run.Index != 1 {
		t.Errorf("index = %d", run.Index)
	}
}

func TestEngineStartOffModeIsNoop(t *testing.T) {
	h := newHarness(t, group.ChaseOff, "1")
	if h.engine.Start("group-1") || h.engine.Running("group-1") {
		t.Error("off mode must not start a run")
	}
	if h.engine.Start("missing") {
		t.Error("missing group must not start a run")
	}
}

func TestEngineStop(t *testing.T) {
	h := newHarness(t, group.ChaseRight, "1", "2")
	h.engine.Start("group-1")

	if !h.engine.Stop("group-1") {
		t.Error("stop of running chase returned false")
	}
	if h.engine.Stop("group-1") {
		t.Error("second stop should be a no-op")
	}

	h.tick()
	if calls := h.bridge.Calls(); len(calls) != 0 {
		t.Errorf("stopped chase sent %d commands", len(calls))
	}
	if h.clock.PendingCount() != 0 {
		t.Errorf("stopped chase left %d timers", h.clock.PendingCount())
	}
}

func TestEngineRestartResetsRun(t *testing.T) {
	h := newHarness(t, group.ChaseRight, "1", "2", "3")
	h.engine.Start("group-1")
	h.tick()
	h.tick()

	h.groups.Update("group-1", func(g *group.Group) { g.Tempo = 60 })
	h.engine.Restart("group-1")

	if idx := h.engine.runFor("group-1").Index; idx != 0 {
		t.Errorf("restarted run index = %d", idx)
	}

	h.bridge.Reset()
	h.tick()
	if len(h.bridge.Calls()) != 0 {
		t.Error("tempo 60 chase fired after 500ms")
	}
	h.tick()
	if got := h.litFixture(t); got != "1" {
		t.Errorf("restarted chase lit %s", got)
	}
}

func TestEngineSetMode(t *testing.T) {
	h := newHarness(t, group.ChaseOff, "1", "2")

	h.engine.SetMode("group-1", group.ChaseRipple)
	if !h.engine.Running("group-1") {
		t.Fatal("non-off mode should start a run")
	}
	g, _ := h.groups.Get("group-1")
	if g.ChaseMode != group.ChaseRipple {
		t.Errorf("mode = %s", g.ChaseMode)
	}

	h.engine.SetMode("group-1", group.ChaseOff)
	if h.engine.Running("group-1") {
		t.Error("off mode should stop the run")
	}
	if h.engine.SetMode("missing", group.ChaseRight) {
		t.Error("unknown group accepted")
	}
}

func TestEngineDropsRunOfDeletedGroup(t *testing.T) {
	h := newHarness(t, group.ChaseRight, "1")
	h.engine.Start("group-1")

	h.groups.mu.Lock()
	delete(h.groups.groups, "group-1")
	h.groups.mu.Unlock()

	h.tick()
	if h.engine.Running("group-1") {
		t.Error("run survived its group")
	}
}

func TestEngineStopDropsThrottledTickCommands(t *testing.T) {
	bridge := hue.NewMockBridge()
	mirror := fixture.NewMirror()
	list, _ := bridge.Fixtures(context.Background())
	mirror.Refresh(list, nil)
	d := dispatch.New(hue.NewLimitedGateway(bridge, 10), mirror, 0)

	g := group.New("group-1", "Stage", 120)
	g.Fixtures = []string{"1", "2", "3", "4", "5", "6"}
	g.ChaseMode = group.ChaseRight
	groups := &fakeGroups{groups: map[string]group.Group{g.ID: g}}

	clk := clock.Fake(time.Unix(0, 0))
	e := New(clk, groups, d, nil)
	t.Cleanup(e.Close)

	e.Start("group-1")
	for i := 0; i < 50; i++ {
		clk.Advance(500 * time.Millisecond)
	}
	e.Stop("group-1")

	atStop := len(bridge.Calls())
	if atStop > 3*len(g.Fixtures) {
		t.Errorf("%d tick commands reached the bridge, expected ticks to coalesce", atStop)
	}

	d.Apply(context.Background(), g, fixture.Update{On: fixture.Ptr(false)})
	time.Sleep(300 * time.Millisecond)

	calls := bridge.Calls()
	if len(calls) != atStop+len(g.Fixtures) {
		t.Fatalf("after stop the bridge got %d commands, want only the %d off commands",
			len(calls)-atStop, len(g.Fixtures))
	}
	for _, id := range g.Fixtures {
		mine := bridge.CallsFor(id)
		if last := mine[len(mine)-1]; last.Update.On == nil || *last.Update.On {
			t.Errorf("fixture %s ended with %+v", id, last.Update)
		}
	}
}
