package chase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightdeck/internal/clock"
	"github.com/dokzlo13/lightdeck/internal/dispatch"
	"github.com/dokzlo13/lightdeck/internal/fixture"
	"github.com/dokzlo13/lightdeck/internal/group"
	"github.com/dokzlo13/lightdeck/internal/tempo"
)

// Groups is the group registry as seen by the engine.
type Groups interface {
	Get(id string) (group.Group, bool)
	Update(id string, fn func(g *group.Group)) (group.Group, bool)
}

// Notifier is told which fixtures a tick touched.
type Notifier interface {
	FixturesChanged(groupID string, fixtureIDs []string)
}

// runEntry is one live periodic task. Its pointer identity tells a firing
// timer whether it still belongs to the current run.
type runEntry struct {
	run      *Run
	timer    *clock.Timer
	sends    *dispatch.Queue
	interval time.Duration
	started  time.Time
}

// Status describes a running chase.
type Status struct {
	GroupID  string          `json:"group"`
	Mode     group.ChaseMode `json:"mode"`
	Interval time.Duration   `json:"interval"`
	Index    int             `json:"index"`
	Since    time.Time       `json:"since"`
}

// Engine owns the run table: at most one periodic task per group.
type Engine struct {
	clock      clock.Clock
	groups     Groups
	dispatcher *dispatch.Dispatcher
	notifier   Notifier

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	runs map[string]*runEntry
}

// New creates an engine. notifier may be nil.
func New(c clock.Clock, groups Groups, dispatcher *dispatch.Dispatcher, notifier Notifier) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		clock:      c,
		groups:     groups,
		dispatcher: dispatcher,
		notifier:   notifier,
		ctx:        ctx,
		cancel:     cancel,
		runs:       make(map[string]*runEntry),
	}
}

// Start begins the group's chase. It is a no-op when the group is missing,
// its mode is off, or a run is already active. Returns whether a run started.
func (e *Engine) Start(groupID string) bool {
	g, ok := e.groups.Get(groupID)
	if !ok || g.ChaseMode == group.ChaseOff {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, running := e.runs[groupID]; running {
		return false
	}

	entry := &runEntry{
		run:      NewRun(),
		sends:    dispatch.NewQueue(e.ctx, e.dispatcher),
		interval: tempo.ChaseInterval(g.Tempo),
		started:  e.clock.Now(),
	}
	e.runs[groupID] = entry
	e.arm(groupID, entry)

	log.Info().
		Str("group", groupID).
		Str("mode", string(g.ChaseMode)).
		Dur("interval", entry.interval).
		Msg("Chase started")
	return true
}

// Stop cancels the group's chase and discards its run state. Tick
// commands still queued or in flight are aborted before Stop returns.
// Returns false when nothing was running.
func (e *Engine) Stop(groupID string) bool {
	e.mu.Lock()
	entry, ok := e.runs[groupID]
	if !ok {
		e.mu.Unlock()
		return false
	}
	delete(e.runs, groupID)
	if entry.timer != nil {
		entry.timer.Stop()
	}
	e.mu.Unlock()

	entry.sends.Close()
	log.Info().Str("group", groupID).Msg("Chase stopped")
	return true
}

// Restart stops any run and starts a fresh one with the group's current
// mode and tempo.
func (e *Engine) Restart(groupID string) bool {
	e.Stop(groupID)
	return e.Start(groupID)
}

// SetMode stores the group's chase mode, stops any active run and starts
// a new one unless the mode is off.
func (e *Engine) SetMode(groupID string, mode group.ChaseMode) bool {
	if _, ok := e.groups.Update(groupID, func(g *group.Group) { g.ChaseMode = mode }); !ok {
		return false
	}
	e.Stop(groupID)
	if mode != group.ChaseOff {
		e.Start(groupID)
	}
	return true
}

// Running reports whether the group has an active run.
func (e *Engine) Running(groupID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.runs[groupID]
	return ok
}

// Statuses lists the running chases.
func (e *Engine) Statuses() []Status {
	e.mu.Lock()
	ids := make(map[string]*runEntry, len(e.runs))
	for id, entry := range e.runs {
		ids[id] = entry
	}
	e.mu.Unlock()

	out := make([]Status, 0, len(ids))
	for id, entry := range ids {
		g, _ := e.groups.Get(id)
		e.mu.Lock()
		index := entry.run.Index
		e.mu.Unlock()
		out = append(out, Status{
			GroupID:  id,
			Mode:     g.ChaseMode,
			Interval: entry.interval,
			Index:    index,
			Since:    entry.started,
		})
	}
	return out
}

// StopAll stops every run.
func (e *Engine) StopAll() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.runs))
	for id := range e.runs {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		e.Stop(id)
	}
}

// Wait blocks until the tick commands of the running chases have been sent.
func (e *Engine) Wait() {
	e.mu.Lock()
	queues := make([]*dispatch.Queue, 0, len(e.runs))
	for _, entry := range e.runs {
		queues = append(queues, entry.sends)
	}
	e.mu.Unlock()

	for _, q := range queues {
		q.Wait()
	}
}

// Close stops every run and aborts its tick commands.
func (e *Engine) Close() {
	e.StopAll()
	e.cancel()
}

// arm must be called with e.mu held.
func (e *Engine) arm(groupID string, entry *runEntry) {
	entry.timer = e.clock.AfterFunc(entry.interval, func() { e.tick(groupID, entry) })
}

func (e *Engine) tick(groupID string, entry *runEntry) {
	g, ok := e.groups.Get(groupID)

	e.mu.Lock()
	if e.runs[groupID] != entry {
		e.mu.Unlock()
		return
	}
	if !ok {
		delete(e.runs, groupID)
		e.mu.Unlock()
		entry.sends.Close()
		log.Debug().Str("group", groupID).Msg("Chase group disappeared, run dropped")
		return
	}

	mirror := e.dispatcher.Mirror()
	lookup := func(id string) (fixture.State, bool) {
		f, ok := mirror.Get(id)
		return f.State, ok
	}
	cmds := fixture.Coalesce(entry.run.Step(g.ChaseMode, g.Fixtures, lookup, g.BaselineBrightness()))
	e.arm(groupID, entry)
	for _, c := range cmds {
		mirror.Apply(c.FixtureID, c.Update)
	}
	// Pushed under e.mu so Stop cannot close the queue in between.
	entry.sends.Push(cmds)
	e.mu.Unlock()

	if len(cmds) == 0 {
		return
	}
	if e.notifier != nil {
		e.notifier.FixturesChanged(groupID, g.Fixtures)
	}
}

// runFor returns the live run of a group, for tests.
func (e *Engine) runFor(groupID string) *Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	if entry, ok := e.runs[groupID]; ok {
		return entry.run
	}
	return nil
}
