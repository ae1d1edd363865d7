package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightdeck/internal/config"
	"github.com/dokzlo13/lightdeck/internal/dispatch"
	"github.com/dokzlo13/lightdeck/internal/fixture"
	"github.com/dokzlo13/lightdeck/internal/hue"
)

// HueService wraps the bridge side: transport, rate limiting, the fixture
// mirror and the command dispatcher.
type HueService struct {
	cfg *config.Config

	Client     *hue.Client
	Mock       *hue.MockBridge
	Discoverer fixture.Discoverer
	Mirror     *fixture.Mirror
	Dispatcher *dispatch.Dispatcher
}

// NewHueService creates the transport. With hue.mock set the built-in mock
// bridge stands in for hardware.
func NewHueService(cfg *config.Config) (*HueService, error) {
	s := &HueService{cfg: cfg, Mirror: fixture.NewMirror()}

	var gateway fixture.Gateway
	if cfg.Hue.Mock {
		s.Mock = hue.NewMockBridge()
		gateway = s.Mock
		s.Discoverer = s.Mock
		log.Warn().Msg("Using mock bridge, no fixtures will be driven")
	} else {
		if cfg.Hue.Token == "" {
			return nil, hue.ErrNotAuthenticated
		}
		s.Client = hue.NewClient(cfg.Hue.Bridge, cfg.Hue.Token, cfg.Hue.Timeout.Duration())
		gateway = s.Client
		s.Discoverer = s.Client
	}

	limited := hue.NewLimitedGateway(gateway, cfg.Hue.RateLimitRPS)
	s.Dispatcher = dispatch.New(limited, s.Mirror, cfg.Hue.MaxInFlight)
	return s, nil
}

// Start performs the first discovery so the bridge is known to be reachable.
func (s *HueService) Start(ctx context.Context) error {
	fixtures, err := s.Discoverer.Fixtures(ctx)
	if err != nil {
		return err
	}
	bridge := "mock"
	if s.Client != nil {
		bridge = s.Client.Address()
	}
	log.Info().Str("bridge", bridge).Int("fixtures", len(fixtures)).Msg("Connected to Hue bridge")
	return nil
}

// Close releases all resources.
func (s *HueService) Close() {
	if s.Client != nil {
		s.Client.Close()
	}
}
