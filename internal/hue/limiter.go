package hue

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/dokzlo13/lightdeck/internal/fixture"
)

// LimitedGateway throttles commands to what the bridge can absorb. The
// v1 API starts dropping light commands well above ten per second.
type LimitedGateway struct {
	next    fixture.Gateway
	limiter *rate.Limiter
}

// NewLimitedGateway wraps next with a token bucket of rps requests per second.
func NewLimitedGateway(next fixture.Gateway, rps float64) *LimitedGateway {
	if rps <= 0 {
		rps = 10.0
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &LimitedGateway{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// SetState waits for a token, then forwards the command.
func (g *LimitedGateway) SetState(ctx context.Context, id string, u fixture.Update) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	return g.next.SetState(ctx, id, u)
}
