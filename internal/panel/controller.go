// Package panel implements the control panel's intents on top of the group
// registry, the fixture mirror and the effect engines.
package panel

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightdeck/internal/chase"
	"github.com/dokzlo13/lightdeck/internal/dispatch"
	"github.com/dokzlo13/lightdeck/internal/fixture"
	"github.com/dokzlo13/lightdeck/internal/group"
	"github.com/dokzlo13/lightdeck/internal/ledger"
	"github.com/dokzlo13/lightdeck/internal/pending"
	"github.com/dokzlo13/lightdeck/internal/scene"
	"github.com/dokzlo13/lightdeck/internal/tempo"
)

// Warm and cool white presets.
const (
	warmCT    uint16 = 500
	warmColor        = "#FFF4E5"
	coolCT    uint16 = 153
	coolColor        = "#E5F4FF"
)

// Signals tells the rendering side what changed.
type Signals interface {
	FixturesChanged(groupID string, fixtureIDs []string)
	GroupsChanged()
}

// Options wires a Controller.
type Options struct {
	Groups     *group.Registry
	Dispatcher *dispatch.Dispatcher
	Pending    *pending.Registry
	Chases     *chase.Engine
	Scenes     *scene.Engine
	Settings   *Settings
	Signals    Signals
	History    scene.History
	Discoverer fixture.Discoverer

	// IncludeUnassigned refreshes the state of fixtures in the unassigned
	// group too. When false they keep their locally mirrored state.
	IncludeUnassigned bool
}

// Controller is the single entry point for panel intents. Group intents
// cancel the group's pending flash settle before sending anything. Missing
// groups and fixtures are ignored and reported through the bool results.
type Controller struct {
	groups     *group.Registry
	mirror     *fixture.Mirror
	dispatcher *dispatch.Dispatcher
	pending    *pending.Registry
	chases     *chase.Engine
	scenes     *scene.Engine
	settings   *Settings
	signals    Signals
	history    scene.History
	discoverer fixture.Discoverer

	includeUnassigned bool
}

// New creates a controller.
func New(opts Options) *Controller {
	return &Controller{
		groups:            opts.Groups,
		mirror:            opts.Dispatcher.Mirror(),
		dispatcher:        opts.Dispatcher,
		pending:           opts.Pending,
		chases:            opts.Chases,
		scenes:            opts.Scenes,
		settings:          opts.Settings,
		signals:           opts.Signals,
		history:           opts.History,
		discoverer:        opts.Discoverer,
		includeUnassigned: opts.IncludeUnassigned,
	}
}

// Groups returns every group in display order.
func (c *Controller) Groups() []group.Group { return c.groups.List() }

// Group returns one group.
func (c *Controller) Group(id string) (group.Group, bool) { return c.groups.Get(id) }

// Fixtures returns the mirrored fixtures.
func (c *Controller) Fixtures() []fixture.Fixture { return c.mirror.List() }

// Fixture returns one mirrored fixture.
func (c *Controller) Fixture(id string) (fixture.Fixture, bool) { return c.mirror.Get(id) }

// Settings returns the persisted panel settings.
func (c *Controller) Settings() *Settings { return c.settings }

// Chases lists running chases.
func (c *Controller) Chases() []chase.Status { return c.chases.Statuses() }

// ResumeChases starts the persisted chase of every group whose mode is not off.
func (c *Controller) ResumeChases() {
	for _, g := range c.groups.List() {
		if g.ChaseMode != group.ChaseOff && c.chases.Start(g.ID) {
			c.record(ledger.EventChaseStarted, g.ID, map[string]any{"mode": g.ChaseMode, "resumed": true})
		}
	}
}

// Close stops all chases and drops every pending settle.
func (c *Controller) Close() {
	c.chases.Close()
	c.pending.CancelAll()
	c.scenes.Close()
}

// begin resolves the group and retires its pending flash settle.
func (c *Controller) begin(groupID, intent string) (group.Group, bool) {
	g, ok := c.groups.Get(groupID)
	if !ok {
		log.Debug().Str("group", groupID).Str("intent", intent).Msg("Intent on missing group ignored")
		return group.Group{}, false
	}
	if c.pending.Cancel(groupID) {
		c.record(ledger.EventFlashCancelled, groupID, map[string]any{"by": intent})
	}
	return g, true
}

func (c *Controller) apply(ctx context.Context, g group.Group, u fixture.Update) {
	succeeded := c.dispatcher.Apply(ctx, g, u.WithAlert(fixture.AlertNone))
	if len(succeeded) > 0 {
		c.fixturesChanged(g.ID, succeeded)
	}
}

// SetColor sends the color to the group's active fixtures with the group
// tempo transition and remembers it as the group color.
func (c *Controller) SetColor(ctx context.Context, groupID string, color Color) bool {
	g, ok := c.begin(groupID, "color")
	if !ok {
		return false
	}
	c.apply(ctx, g, color.update().WithTransition(tempo.Transition(g.Tempo)))
	c.groups.Update(groupID, func(g *group.Group) { g.Color = color.Hex })
	return true
}

// SetBrightness sets the brightness of the group's active fixtures.
func (c *Controller) SetBrightness(ctx context.Context, groupID string, bri uint8) bool {
	g, ok := c.begin(groupID, "brightness")
	if !ok {
		return false
	}
	c.apply(ctx, g, fixture.Update{Bri: fixture.Ptr(bri)}.WithTransition(tempo.Transition(g.Tempo)))
	c.groups.Update(groupID, func(g *group.Group) { g.Brightness = bri })
	return true
}

// Power switches the group's active fixtures on or off with the given fade.
func (c *Controller) Power(ctx context.Context, groupID string, on bool, fade Fade) bool {
	intent := "off"
	if on {
		intent = "on"
	}
	g, ok := c.begin(groupID, intent)
	if !ok {
		return false
	}
	c.apply(ctx, g, fixture.Update{On: fixture.Ptr(on)}.WithTransition(fade.transition(g.Tempo)))
	return true
}

// Warm sets the group to warm white.
func (c *Controller) Warm(ctx context.Context, groupID string) bool {
	return c.white(ctx, groupID, "warm", warmCT, warmColor)
}

// Cool sets the group to cool white.
func (c *Controller) Cool(ctx context.Context, groupID string) bool {
	return c.white(ctx, groupID, "cool", coolCT, coolColor)
}

func (c *Controller) white(ctx context.Context, groupID, intent string, ct uint16, color string) bool {
	g, ok := c.begin(groupID, intent)
	if !ok {
		return false
	}
	u := fixture.Update{On: fixture.Ptr(true), Ct: fixture.Ptr(ct)}.WithTransition(tempo.Transition(g.Tempo))
	c.apply(ctx, g, u)
	c.groups.Update(groupID, func(g *group.Group) { g.Color = color })
	return true
}

// RecallScene replays a saved scene on the group.
func (c *Controller) RecallScene(ctx context.Context, groupID string, index int) bool {
	return c.scenes.Recall(ctx, groupID, index)
}

// SaveScene captures the group's fixtures into a new scene and returns its
// index.
func (c *Controller) SaveScene(groupID, name string, transition *uint16, flash bool) (int, bool) {
	g, ok := c.groups.Get(groupID)
	if !ok {
		return 0, false
	}
	index, err := c.groups.AddScene(groupID, scene.Capture(g, c.mirror, name, transition, flash))
	if err != nil {
		return 0, false
	}
	c.groupsChanged()
	return index, true
}

// DeleteScene removes a scene by index.
func (c *Controller) DeleteScene(groupID string, index int) error {
	if err := c.groups.DeleteScene(groupID, index); err != nil {
		return err
	}
	c.groupsChanged()
	return nil
}

// SetTempo sets the group's own tempo, unlocking it from the global tempo.
// A running chase restarts at the new interval.
func (c *Controller) SetTempo(groupID string, t int) bool {
	if t < 0 {
		t = 0
	}
	if _, ok := c.groups.Update(groupID, func(g *group.Group) {
		g.Tempo = t
		g.TempoLocked = false
	}); !ok {
		return false
	}
	c.restartChase(groupID)
	c.groupsChanged()
	return true
}

// SetTempoLock locks or unlocks the group's tempo. Locking adopts the
// global tempo.
func (c *Controller) SetTempoLock(groupID string, locked bool) bool {
	global := c.settings.GlobalTempo()
	before, ok := c.groups.Get(groupID)
	if !ok {
		return false
	}
	after, _ := c.groups.Update(groupID, func(g *group.Group) {
		g.TempoLocked = locked
		if locked {
			g.Tempo = global
		}
	})
	if after.Tempo != before.Tempo {
		c.restartChase(groupID)
	}
	c.groupsChanged()
	return true
}

// SetGlobalTempo stores the global tempo and applies it to every locked
// group, restarting their chases.
func (c *Controller) SetGlobalTempo(t int) error {
	if t < 0 {
		return fmt.Errorf("tempo must not be negative: %d", t)
	}
	if err := c.settings.SetGlobalTempo(t); err != nil {
		return fmt.Errorf("failed to store global tempo: %w", err)
	}
	for _, id := range c.groups.ApplyGlobalTempo(t) {
		c.restartChase(id)
	}
	c.groupsChanged()
	return nil
}

// SetFlashDelay stores the delay between a scene flash and its settle.
func (c *Controller) SetFlashDelay(ms int) error {
	if ms < 0 {
		return fmt.Errorf("flash delay must not be negative: %d", ms)
	}
	return c.settings.SetFlashDelay(msToDuration(ms))
}

func (c *Controller) restartChase(groupID string) {
	if c.chases.Running(groupID) {
		c.chases.Restart(groupID)
	}
}

// SetChaseMode switches the group's chase, stopping the current run and
// starting a new one unless mode is off.
func (c *Controller) SetChaseMode(groupID string, mode group.ChaseMode) bool {
	wasRunning := c.chases.Running(groupID)
	if !c.chases.SetMode(groupID, mode) {
		return false
	}
	if mode == group.ChaseOff {
		if wasRunning {
			c.record(ledger.EventChaseStopped, groupID, nil)
		}
	} else {
		c.record(ledger.EventChaseStarted, groupID, map[string]any{"mode": mode})
	}
	c.groupsChanged()
	return true
}

// Flags are the optional attribute changes of a group update.
type Flags struct {
	Name            *string          `json:"name"`
	FlashMode       *group.FlashMode `json:"flash_mode"`
	ToggleFlash     *bool            `json:"toggle_flash"`
	Strobe          *bool            `json:"strobe"`
	Collapsed       *bool            `json:"collapsed"`
	EffectsExpanded *bool            `json:"effects_expanded"`
}

// UpdateGroup renames the group and sets its display flags.
func (c *Controller) UpdateGroup(groupID string, f Flags) (group.Group, bool) {
	if f.Name != nil {
		if _, ok := c.groups.Rename(groupID, *f.Name); !ok {
			return group.Group{}, false
		}
	}
	g, ok := c.groups.Update(groupID, func(g *group.Group) {
		if f.FlashMode != nil && f.FlashMode.Valid() {
			g.FlashMode = *f.FlashMode
		}
		setIf(&g.ToggleFlash, f.ToggleFlash)
		setIf(&g.Strobe, f.Strobe)
		setIf(&g.Collapsed, f.Collapsed)
		setIf(&g.EffectsExpanded, f.EffectsExpanded)
	})
	if ok {
		c.groupsChanged()
	}
	return g, ok
}

// CreateGroup adds a group at the global tempo.
func (c *Controller) CreateGroup(name string) group.Group {
	g := c.groups.Create(name, c.settings.GlobalTempo())
	c.groupsChanged()
	return g
}

// DeleteGroup removes the group, stops its chase, drops its pending settle
// and returns its fixtures to the unassigned group.
func (c *Controller) DeleteGroup(groupID string) error {
	if err := c.groups.Delete(groupID); err != nil {
		return err
	}
	c.chases.Stop(groupID)
	c.pending.Cancel(groupID)
	c.groups.Reconcile(c.mirror.IDs())

	c.record(ledger.EventGroupDeleted, groupID, nil)
	c.groupsChanged()
	return nil
}

// MoveFixture assigns a fixture to a group.
func (c *Controller) MoveFixture(fixtureID, groupID string) bool {
	if !c.mirror.Has(fixtureID) || !c.groups.MoveFixture(fixtureID, groupID) {
		return false
	}
	c.groupsChanged()
	return true
}

// Reorder moves a group to the position of another.
func (c *Controller) Reorder(draggedID, targetID string) bool {
	if !c.groups.Reorder(draggedID, targetID) {
		return false
	}
	c.groupsChanged()
	return true
}

// Select marks every fixture of the group active or inactive.
func (c *Controller) Select(groupID string, active bool) bool {
	g, ok := c.groups.Get(groupID)
	if !ok {
		return false
	}
	for _, id := range g.Fixtures {
		c.mirror.SetActive(id, active)
	}
	c.fixturesChanged(groupID, g.Fixtures)
	return true
}

// SetFixtureActive changes one fixture's selection flag.
func (c *Controller) SetFixtureActive(fixtureID string, active bool) bool {
	if !c.mirror.SetActive(fixtureID, active) {
		return false
	}
	c.fixtureChanged(fixtureID)
	return true
}

// ToggleFixture flips one fixture's power. It bypasses groups, so pending
// settles are left alone.
func (c *Controller) ToggleFixture(ctx context.Context, fixtureID string) bool {
	f, ok := c.mirror.Get(fixtureID)
	if !ok {
		return false
	}
	c.sendOne(ctx, fixtureID, fixture.Update{On: fixture.Ptr(!f.State.On)})
	return true
}

// SetFixtureBrightness sets one fixture's brightness.
func (c *Controller) SetFixtureBrightness(ctx context.Context, fixtureID string, bri uint8) bool {
	if !c.mirror.Has(fixtureID) {
		return false
	}
	c.sendOne(ctx, fixtureID, fixture.Update{Bri: fixture.Ptr(bri)})
	return true
}

func (c *Controller) sendOne(ctx context.Context, fixtureID string, u fixture.Update) {
	if len(c.dispatcher.Send(ctx, []fixture.Command{{FixtureID: fixtureID, Update: u}})) == 0 {
		return
	}
	c.mirror.Apply(fixtureID, u)
	c.fixtureChanged(fixtureID)
}

// Refresh rediscovers fixtures, replaces the mirror and reconciles group
// membership.
func (c *Controller) Refresh(ctx context.Context) error {
	discovered, err := c.discoverer.Fixtures(ctx)
	if err != nil {
		return fmt.Errorf("failed to discover fixtures: %w", err)
	}

	var keepLocal func(string) bool
	if !c.includeUnassigned {
		keepLocal = func(id string) bool {
			groupID, ok := c.groups.GroupOf(id)
			return !ok || groupID == group.UnassignedID
		}
	}
	c.mirror.Refresh(discovered, keepLocal)
	c.groups.Reconcile(c.mirror.IDs())

	log.Debug().Int("fixtures", len(discovered)).Msg("Fixtures refreshed")
	c.groupsChanged()
	return nil
}

func (c *Controller) fixtureChanged(fixtureID string) {
	groupID, _ := c.groups.GroupOf(fixtureID)
	c.fixturesChanged(groupID, []string{fixtureID})
}

func (c *Controller) fixturesChanged(groupID string, ids []string) {
	if c.signals != nil {
		c.signals.FixturesChanged(groupID, ids)
	}
}

func (c *Controller) groupsChanged() {
	if c.signals != nil {
		c.signals.GroupsChanged()
	}
}

func (c *Controller) record(eventType ledger.EventType, groupID string, payload map[string]any) {
	if c.history != nil {
		c.history.Record(eventType, groupID, payload)
	}
}

func setIf(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
