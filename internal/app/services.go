package app

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightdeck/internal/config"
	"github.com/dokzlo13/lightdeck/internal/db"
	"github.com/dokzlo13/lightdeck/internal/eventbus"
	"github.com/dokzlo13/lightdeck/internal/ledger"
	"github.com/dokzlo13/lightdeck/internal/notify"
	"github.com/dokzlo13/lightdeck/internal/storage"
	"github.com/dokzlo13/lightdeck/internal/storage/kv"
	"github.com/dokzlo13/lightdeck/internal/web"
)

// Services holds the panel's infrastructure and the services built on it.
// Start and Close walk them in dependency order.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Store  *storage.Store
	KV     *kv.Manager
	Bus    *eventbus.Bus

	// High-level services
	Hue   *HueService
	Panel *PanelService
	Lua   *LuaService
	HTTP  *HTTPService
	MQTT  *notify.MQTTPublisher

	ready atomic.Bool
}

// NewServices creates all services with proper dependency injection.
// configPath is used to resolve a relative script path.
func NewServices(cfg *config.Config, configPath string) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Ledger = ledger.New(database.DB)
	s.Store = storage.NewStore(database.DB)
	s.KV = kv.NewManager(database.DB)
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.Workers, cfg.EventBus.QueueSize)

	s.Hue, err = NewHueService(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Panel = NewPanelService(cfg, s.Hue, s.Store, s.KV, s.Ledger, s.Bus)

	var macros web.Macros
	if cfg.Script != "" {
		s.Lua = NewLuaService(cfg, configPath, s.Panel.Controller, s.KV)
		s.Lua.Runtime.SetHistory(s.Ledger)
		macros = s.Lua.Runtime
	}

	s.HTTP = NewHTTPService(cfg, s.Panel.Controller, s.Ledger, macros, s.Panel.Refresher, s.Bus, s.ready.Load)

	if cfg.MQTT.Enabled {
		s.MQTT, err = notify.NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.MQTT.Subscribe(s.Bus)
	}

	return s, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a fatal error occurs (e.g., the
// HTTP listener cannot bind).
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	if err := s.Hue.Start(ctx); err != nil {
		return err
	}

	// Load Lua script before starting worker
	if s.Lua != nil {
		if err := s.Lua.LoadScript(); err != nil {
			return err
		}
		s.Lua.Start(ctx)
	}

	s.Panel.Start(ctx)
	s.HTTP.Start(ctx, onFatalError)

	go s.Ledger.RunCleanup(ctx, s.cfg.Ledger.CleanupInterval.Duration(), s.cfg.Ledger.Retention())
	go s.KV.RunCleanup(ctx, s.cfg.Ledger.CleanupInterval.Duration())

	s.ready.Store(true)
	return nil
}

// ClearState clears the persisted groups.
func (s *Services) ClearState() error {
	return s.Panel.ClearState()
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.ready.Store(false)
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Panel != nil {
		s.Panel.Close()
	}
	if s.Lua != nil {
		s.Lua.Close()
	}
	if s.MQTT != nil {
		s.MQTT.Stop()
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		s.Bus.Close(ctx)
	}
	if s.Hue != nil {
		s.Hue.Close()
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
}
