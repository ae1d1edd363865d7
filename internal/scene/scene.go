// Package scene captures group snapshots and replays them, either directly
// or as a flash followed by a deferred settle.
package scene

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightdeck/internal/dispatch"
	"github.com/dokzlo13/lightdeck/internal/fixture"
	"github.com/dokzlo13/lightdeck/internal/group"
	"github.com/dokzlo13/lightdeck/internal/ledger"
	"github.com/dokzlo13/lightdeck/internal/pending"
)

const (
	// DefaultTransition is used when a scene is saved without one.
	DefaultTransition uint16 = 10
	// DefaultFlashDelay separates the flash from the settle.
	DefaultFlashDelay = time.Second
	// MaxFlashDelay caps the configured flash delay.
	MaxFlashDelay = 15 * time.Second

	flashTransition uint16 = 1
)

// Groups resolves group snapshots.
type Groups interface {
	Get(id string) (group.Group, bool)
}

// Notifier is told which fixtures changed after a recall or settle.
type Notifier interface {
	FixturesChanged(groupID string, fixtureIDs []string)
}

// Settings supplies the user-configured flash delay.
type Settings interface {
	FlashDelay() time.Duration
}

// History records recalls and settles.
type History interface {
	Record(eventType ledger.EventType, groupID string, payload map[string]any)
}

// Engine recalls scenes. The pending registry is shared with every other
// group intent so that any of them can pre-empt a scheduled settle.
type Engine struct {
	groups     Groups
	dispatcher *dispatch.Dispatcher
	pending    *pending.Registry
	settings   Settings
	notifier   Notifier
	history    History

	ctx    context.Context
	cancel context.CancelFunc
}

// Options configures an Engine. Settings, Notifier and History are optional.
type Options struct {
	Groups     Groups
	Dispatcher *dispatch.Dispatcher
	Pending    *pending.Registry
	Settings   Settings
	Notifier   Notifier
	History    History
}

// New creates a scene engine.
func New(opts Options) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		groups:     opts.Groups,
		dispatcher: opts.Dispatcher,
		pending:    opts.Pending,
		settings:   opts.Settings,
		notifier:   opts.Notifier,
		history:    opts.History,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Close aborts the commands of a settle that is already running. Settles
// still waiting are left to the pending registry.
func (e *Engine) Close() {
	e.cancel()
}

// Recall replays the scene at index on the group. A missing group or scene
// is ignored. Returns whether a scene was found.
//
// Non-flash scenes are sent with their transition and the mirror is
// overwritten before Recall returns. Flash scenes are sent with a short
// transition and a long-select alert, then the settle is scheduled; the
// settle is registered before Recall returns.
func (e *Engine) Recall(ctx context.Context, groupID string, index int) bool {
	if e.pending.Cancel(groupID) {
		e.record(ledger.EventFlashCancelled, groupID, map[string]any{"by": "recall"})
	}

	g, ok := e.groups.Get(groupID)
	if !ok {
		log.Debug().Str("group", groupID).Msg("Recall on missing group ignored")
		return false
	}
	s, ok := g.Scene(index)
	if !ok {
		log.Debug().Str("group", groupID).Int("scene", index).Msg("Recall of missing scene ignored")
		return false
	}

	e.record(ledger.EventSceneRecalled, groupID, map[string]any{
		"scene": index,
		"name":  s.Name,
		"flash": s.Flash,
	})

	if !s.Flash {
		e.settle(ctx, groupID, s)
		return true
	}

	e.dispatcher.Send(ctx, commands(s, flashTransition, fixture.AlertLongSelect))

	delay := e.flashDelay()
	e.pending.Schedule(groupID, delay, func() {
		e.settle(e.ctx, groupID, s)
		e.record(ledger.EventSceneSettled, groupID, map[string]any{"scene": index})
	})

	log.Info().
		Str("group", groupID).
		Str("scene", s.Name).
		Dur("delay", delay).
		Msg("Scene flashed, settle scheduled")
	return true
}

// settle sends the saved states with the scene transition, then overwrites
// the mirror of every fixture that accepted its command.
func (e *Engine) settle(ctx context.Context, groupID string, s group.Scene) {
	succeeded := e.dispatcher.Send(ctx, commands(s, s.TransitionTime, fixture.AlertNone))

	saved := make(map[string]fixture.State, len(s.Fixtures))
	for _, sf := range s.Fixtures {
		saved[sf.ID] = sf.State
	}
	mirror := e.dispatcher.Mirror()
	for _, id := range succeeded {
		mirror.Overwrite(id, saved[id])
	}

	log.Debug().
		Str("group", groupID).
		Str("scene", s.Name).
		Int("fixtures", len(s.Fixtures)).
		Int("succeeded", len(succeeded)).
		Msg("Scene applied")

	if e.notifier != nil {
		e.notifier.FixturesChanged(groupID, fixtureIDs(s))
	}
}

func (e *Engine) flashDelay() time.Duration {
	d := DefaultFlashDelay
	if e.settings != nil {
		d = e.settings.FlashDelay()
	}
	return ClampFlashDelay(d)
}

func (e *Engine) record(eventType ledger.EventType, groupID string, payload map[string]any) {
	if e.history != nil {
		e.history.Record(eventType, groupID, payload)
	}
}

// ClampFlashDelay bounds d to [0, MaxFlashDelay].
func ClampFlashDelay(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > MaxFlashDelay {
		return MaxFlashDelay
	}
	return d
}

// Capture snapshots the mirrored state of the group's known fixtures.
// An empty name becomes "Scene N" and a nil transition becomes
// DefaultTransition.
func Capture(g group.Group, mirror *fixture.Mirror, name string, transition *uint16, flash bool) group.Scene {
	if name == "" {
		name = fmt.Sprintf("Scene %d", len(g.Scenes)+1)
	}
	tt := DefaultTransition
	if transition != nil {
		tt = *transition
	}

	fixtures := make([]group.SceneFixture, 0, len(g.Fixtures))
	for _, id := range g.Fixtures {
		f, ok := mirror.Get(id)
		if !ok {
			continue
		}
		fixtures = append(fixtures, group.SceneFixture{ID: id, State: fixture.Capture(f.State)})
	}

	return group.Scene{
		ID:             uuid.NewString(),
		Name:           name,
		TransitionTime: tt,
		Flash:          flash,
		Fixtures:       fixtures,
	}
}

func commands(s group.Scene, transition uint16, alert fixture.Alert) []fixture.Command {
	cmds := make([]fixture.Command, len(s.Fixtures))
	for i, sf := range s.Fixtures {
		cmds[i] = fixture.Command{
			FixtureID: sf.ID,
			Update:    sf.State.AsUpdate().WithTransition(transition).WithAlert(alert),
		}
	}
	return cmds
}

func fixtureIDs(s group.Scene) []string {
	ids := make([]string, len(s.Fixtures))
	for i, sf := range s.Fixtures {
		ids[i] = sf.ID
	}
	return ids
}
