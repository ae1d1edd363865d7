// Package dispatch fans fixture commands out to the bridge.
package dispatch

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dokzlo13/lightdeck/internal/fixture"
	"github.com/dokzlo13/lightdeck/internal/group"
)

// Dispatcher issues commands concurrently and waits for all of them.
// Failures are logged per fixture and never retried.
type Dispatcher struct {
	gateway     fixture.Gateway
	mirror      *fixture.Mirror
	maxInFlight int
}

// New creates a dispatcher. maxInFlight <= 0 issues every command of a
// fan-out at once.
func New(gateway fixture.Gateway, mirror *fixture.Mirror, maxInFlight int) *Dispatcher {
	return &Dispatcher{
		gateway:     gateway,
		mirror:      mirror,
		maxInFlight: maxInFlight,
	}
}

// Mirror returns the fixture mirror the dispatcher writes to.
func (d *Dispatcher) Mirror() *fixture.Mirror {
	return d.mirror
}

// Send issues all commands concurrently and returns the ids of the
// fixtures whose command succeeded, in command order. It does not touch
// the mirror.
func (d *Dispatcher) Send(ctx context.Context, cmds []fixture.Command) []string {
	if len(cmds) == 0 {
		return nil
	}

	ok := make([]bool, len(cmds))
	var g errgroup.Group
	if d.maxInFlight > 0 {
		g.SetLimit(d.maxInFlight)
	}

	for i, cmd := range cmds {
		i, cmd := i, cmd
		g.Go(func() error {
			if err := d.gateway.SetState(ctx, cmd.FixtureID, cmd.Update); err != nil {
				log.Warn().Err(err).Str("fixture", cmd.FixtureID).Msg("Fixture command failed")
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	succeeded := make([]string, 0, len(cmds))
	for i, cmd := range cmds {
		if ok[i] {
			succeeded = append(succeeded, cmd.FixtureID)
		}
	}
	return succeeded
}

// Apply sends u to every active fixture of the group and merges it into
// the mirror for each fixture that accepted it. Inactive fixtures are
// skipped. Callers cancel the group's pending action first.
func (d *Dispatcher) Apply(ctx context.Context, g group.Group, u fixture.Update) []string {
	targets := d.mirror.Active(g.Fixtures)
	if len(targets) == 0 {
		return nil
	}

	cmds := make([]fixture.Command, len(targets))
	for i, id := range targets {
		cmds[i] = fixture.Command{FixtureID: id, Update: u}
	}

	succeeded := d.Send(ctx, cmds)
	for _, id := range succeeded {
		d.mirror.Apply(id, u)
	}

	log.Debug().
		Str("group", g.ID).
		Int("targets", len(targets)).
		Int("succeeded", len(succeeded)).
		Msg("Group update applied")

	return succeeded
}

// Queue sends batches for one periodic producer, such as a chase run,
// without making the producer wait. At most one batch is in flight; batches
// pushed meanwhile are folded per fixture, latest wins, and sent next.
// Close aborts whatever is queued or in flight.
type Queue struct {
	dispatcher *Dispatcher
	ctx        context.Context
	cancel     context.CancelFunc

	mu     sync.Mutex
	busy   bool
	closed bool
	queued []fixture.Command
	wg     sync.WaitGroup
}

// NewQueue creates a queue whose sends stop when parent is cancelled.
func NewQueue(parent context.Context, d *Dispatcher) *Queue {
	ctx, cancel := context.WithCancel(parent)
	return &Queue{dispatcher: d, ctx: ctx, cancel: cancel}
}

// Push hands cmds to the queue and returns at once. It is a no-op after Close.
func (q *Queue) Push(cmds []fixture.Command) {
	if len(cmds) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	if q.busy {
		q.queued = fixture.Coalesce(append(q.queued, cmds...))
		return
	}
	q.busy = true
	q.wg.Add(1)
	go q.drain(cmds)
}

func (q *Queue) drain(batch []fixture.Command) {
	defer q.wg.Done()
	for {
		q.dispatcher.Send(q.ctx, batch)

		q.mu.Lock()
		batch, q.queued = q.queued, nil
		if len(batch) == 0 || q.ctx.Err() != nil {
			q.busy = false
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()
	}
}

// Wait blocks until the queue is idle.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Close drops queued batches, cancels the one in flight and waits for it
// to return. Nothing reaches the gateway after Close returns.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.queued = nil
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}
