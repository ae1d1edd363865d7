// Package pending tracks the single deferred action a group may have
// outstanding, such as the settle phase of a flash scene recall.
package pending

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightdeck/internal/clock"
)

// slot is one scheduled action. Its identity is the cancellation token:
// whoever removes it from the table owns it.
type slot struct {
	timer *clock.Timer
	at    time.Time
}

// Registry holds at most one pending action per group.
type Registry struct {
	clock clock.Clock

	mu    sync.Mutex
	slots map[string]*slot
}

// NewRegistry creates an empty registry.
func NewRegistry(c clock.Clock) *Registry {
	return &Registry{
		clock: c,
		slots: make(map[string]*slot),
	}
}

// Schedule arranges for fn to run after delay, replacing any action the
// group already had pending. The slot is registered before Schedule
// returns, so a later Cancel always sees it.
func (r *Registry) Schedule(groupID string, delay time.Duration, fn func()) {
	s := &slot{at: r.clock.Now().Add(delay)}

	r.mu.Lock()
	if prev := r.slots[groupID]; prev != nil {
		prev.stop()
		log.Debug().Str("group", groupID).Msg("Superseded pending action")
	}
	r.slots[groupID] = s
	r.mu.Unlock()

	timer := r.clock.AfterFunc(delay, func() {
		if !r.claim(groupID, s) {
			return
		}
		fn()
	})

	r.mu.Lock()
	s.timer = timer
	r.mu.Unlock()
}

// claim removes s from the table if it is still the group's current slot.
// A claimed action runs to completion; a late Cancel no longer sees it.
func (r *Registry) claim(groupID string, s *slot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slots[groupID] != s {
		return false
	}
	delete(r.slots, groupID)
	return true
}

// Cancel drops the group's pending action so it never runs. Returns false
// when nothing was pending. Safe to call repeatedly.
func (r *Registry) Cancel(groupID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[groupID]
	if !ok {
		return false
	}
	delete(r.slots, groupID)
	s.stop()
	return true
}

// Pending reports whether the group has an action waiting and when it is due.
func (r *Registry) Pending(groupID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[groupID]
	if !ok {
		return time.Time{}, false
	}
	return s.at, true
}

// CancelAll drops every pending action.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.slots {
		s.stop()
		delete(r.slots, id)
	}
}

// stop must be called with the registry lock held. The timer may still be
// unset if Schedule has not finished; the callback's claim then fails.
func (s *slot) stop() {
	if s.timer != nil {
		s.timer.Stop()
	}
}
