// Package app wires the panel's services together and runs them until
// shutdown.
package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightdeck/internal/config"
)

// App owns the service graph for one run of the daemon.
type App struct {
	cfg      *config.Config
	services *Services
}

// New builds every service without starting any. configPath locates a
// relative macro script.
func New(cfg *config.Config, configPath string) (*App, error) {
	services, err := NewServices(cfg, configPath)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, services: services}, nil
}

// ResetState drops the persisted groups before Run, for --reset-state.
func (a *App) ResetState() error {
	return a.services.ClearState()
}

// Run starts the services, blocks until ctx is done or a service fails
// fatally, then shuts everything down. A fatal failure is returned; a
// plain cancellation is not.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	fatal := func(err error) {
		log.Error().Err(err).Msg("Service failed, shutting down")
		cancel(err)
	}

	if err := a.services.Start(ctx, fatal); err != nil {
		a.services.Stop()
		return err
	}
	log.Info().Str("addr", a.cfg.HTTP.Addr()).Msg("lightdeck started")

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	if err := a.services.Stop(); err != nil {
		log.Error().Err(err).Msg("Shutdown incomplete")
	}

	if err := context.Cause(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
