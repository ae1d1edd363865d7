package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightdeck/internal/chase"
	"github.com/dokzlo13/lightdeck/internal/clock"
	"github.com/dokzlo13/lightdeck/internal/config"
	"github.com/dokzlo13/lightdeck/internal/eventbus"
	"github.com/dokzlo13/lightdeck/internal/group"
	"github.com/dokzlo13/lightdeck/internal/ledger"
	"github.com/dokzlo13/lightdeck/internal/panel"
	"github.com/dokzlo13/lightdeck/internal/pending"
	"github.com/dokzlo13/lightdeck/internal/scene"
	"github.com/dokzlo13/lightdeck/internal/storage"
	"github.com/dokzlo13/lightdeck/internal/storage/kv"
)

const settingsBucket = "settings"

// PanelService owns the group registry, the effect engines and the
// controller that drives them.
type PanelService struct {
	cfg *config.Config

	GroupStore *group.SQLStore
	Groups     *group.Registry
	Settings   *panel.Settings
	Pending    *pending.Registry
	Chases     *chase.Engine
	Scenes     *scene.Engine
	Controller *panel.Controller
	Refresher  *panel.Refresher
}

// NewPanelService wires the panel core onto the bridge side.
func NewPanelService(
	cfg *config.Config,
	bridge *HueService,
	store *storage.Store,
	kvManager *kv.Manager,
	history *ledger.Ledger,
	bus *eventbus.Bus,
) *PanelService {
	c := clock.Real()

	s := &PanelService{cfg: cfg}
	s.GroupStore = group.NewSQLStore(store)
	s.Settings = panel.NewSettings(kvManager.Bucket(settingsBucket, true), cfg.Effects.FlashDelay.Duration())

	s.Groups = group.NewRegistry(s.GroupStore)
	s.Groups.Load(s.Settings.GlobalTempo())

	s.Pending = pending.NewRegistry(c)
	s.Chases = chase.New(c, s.Groups, bridge.Dispatcher, bus)
	s.Scenes = scene.New(scene.Options{
		Groups:     s.Groups,
		Dispatcher: bridge.Dispatcher,
		Pending:    s.Pending,
		Settings:   s.Settings,
		Notifier:   bus,
		History:    history,
	})
	s.Controller = panel.New(panel.Options{
		Groups:            s.Groups,
		Dispatcher:        bridge.Dispatcher,
		Pending:           s.Pending,
		Chases:            s.Chases,
		Scenes:            s.Scenes,
		Settings:          s.Settings,
		Signals:           bus,
		History:           history,
		Discoverer:        bridge.Discoverer,
		IncludeUnassigned: cfg.Refresh.UnassignedIncluded(),
	})
	s.Refresher = panel.NewRefresher(c, s.Controller, cfg.Refresh.Interval.Duration())
	return s
}

// Start discovers fixtures, resumes persisted chases and starts the
// periodic refresh.
func (s *PanelService) Start(ctx context.Context) {
	if err := s.Controller.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial fixture refresh failed")
	}
	s.Controller.ResumeChases()

	go func() {
		if err := s.Refresher.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Refresher error")
		}
	}()
}

// ClearState drops the persisted groups and starts over with the default
// group.
func (s *PanelService) ClearState() error {
	if err := s.GroupStore.Clear(); err != nil {
		return err
	}
	s.Groups.Load(s.Settings.GlobalTempo())
	return nil
}

// Close stops every chase and pending settle.
func (s *PanelService) Close() {
	if s.Controller != nil {
		s.Controller.Close()
	}
}
