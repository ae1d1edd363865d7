package panel

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightdeck/internal/clock"
)

// Refresher rediscovers fixtures periodically and on demand.
type Refresher struct {
	clock      clock.Clock
	controller *Controller
	interval   time.Duration
	trigger    chan struct{}
}

// NewRefresher creates a refresher. interval <= 0 defaults to one minute.
func NewRefresher(c clock.Clock, controller *Controller, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{
		clock:      c,
		controller: controller,
		interval:   interval,
		trigger:    make(chan struct{}, 1),
	}
}

// Trigger requests a refresh without waiting for it.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
		// Already triggered
	}
}

// Run refreshes on every tick or trigger until ctx is done. The startup
// refresh is the caller's job.
func (r *Refresher) Run(ctx context.Context) error {
	log.Info().Dur("interval", r.interval).Msg("Refresher started")

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Refresher stopping")
			return nil
		case <-r.trigger:
			r.refresh(ctx)
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	if err := r.controller.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Fixture refresh failed")
	}
}
