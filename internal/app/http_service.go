package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightdeck/internal/config"
	"github.com/dokzlo13/lightdeck/internal/eventbus"
	"github.com/dokzlo13/lightdeck/internal/ledger"
	"github.com/dokzlo13/lightdeck/internal/panel"
	"github.com/dokzlo13/lightdeck/internal/web"
)

// HTTPService serves the REST API and the WebSocket signal hub.
type HTTPService struct {
	cfg    *config.Config
	Hub    *web.Hub
	Router *web.Router
	server *http.Server
}

// NewHTTPService builds the router. macros may be nil when no script is
// configured.
func NewHTTPService(
	cfg *config.Config,
	controller *panel.Controller,
	history *ledger.Ledger,
	macros web.Macros,
	refresher *panel.Refresher,
	bus *eventbus.Bus,
	ready func() bool,
) *HTTPService {
	hub := web.NewHub(cfg.HTTP.AllowedOrigins)
	hub.Subscribe(bus)

	router := web.NewRouter(web.Options{
		Controller:     controller,
		History:        history,
		Macros:         macros,
		Hub:            hub,
		Refresher:      refresher,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Ready:          ready,
	})

	return &HTTPService{
		cfg:    cfg,
		Hub:    hub,
		Router: router,
	}
}

// Start runs the hub and the server until ctx is cancelled. Listen
// failures are reported through onFatalError.
func (s *HTTPService) Start(ctx context.Context, onFatalError func(error)) {
	go s.Hub.Run()
	go s.run(ctx, onFatalError)
}

func (s *HTTPService) run(ctx context.Context, onFatalError func(error)) {
	addr := s.cfg.HTTP.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Starting HTTP server")

	go func() {
		<-ctx.Done()
		s.Hub.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("HTTP server error")
		if onFatalError != nil {
			onFatalError(err)
		}
	}
}
