// Package chase runs the repeating per-group light patterns.
package chase

import (
	"math"

	"github.com/dokzlo13/lightdeck/internal/fixture"
	"github.com/dokzlo13/lightdeck/internal/group"
)

const maxTrail = 3

// rippleLevels are brightness multipliers for the trail, oldest first,
// keyed by the current trail length.
var rippleLevels = map[int][]float64{
	1: {1.0},
	2: {0.6, 1.0},
	3: {0.1, 0.6, 1.0},
}

// Run is the transient state of one group's chase.
type Run struct {
	Index     int
	Direction int
	Trail     []int
}

// NewRun returns the state a chase starts from.
func NewRun() *Run {
	return &Run{Direction: 1}
}

// StateLookup returns the mirrored state of a fixture.
type StateLookup func(id string) (fixture.State, bool)

// Step advances the run by one tick over the group's fixture order and
// returns the commands it produces, unmerged and in issue order. The
// active-selection flag is not consulted: chases address every fixture.
func (r *Run) Step(mode group.ChaseMode, fixtures []string, lookup StateLookup, brightness uint8) []fixture.Command {
	n := len(fixtures)
	if n == 0 {
		return nil
	}

	var cmds []fixture.Command
	switch mode {
	case group.ChaseRotate:
		cmds = rotate(fixtures, lookup)

	case group.ChaseRight:
		cmds = append(allOff(fixtures), on(fixtures[r.Index%n], brightness))
		r.Index = (r.Index + 1) % n

	case group.ChaseLeft:
		cmds = append(allOff(fixtures), on(fixtures[r.Index%n], brightness))
		r.Index = ((r.Index-1)%n + n) % n

	case group.ChaseClassic:
		cmds = append(allOff(fixtures),
			on(fixtures[r.Index%n], brightness),
			on(fixtures[(r.Index+1)%n], brightness))
		r.Index = (r.Index + 1) % n

	case group.ChaseRipple:
		cmds = r.ripple(fixtures, brightness)
		r.Index = (r.Index + 1) % n

	case group.ChasePingPong:
		if r.Index <= 0 {
			r.Direction = 1
		} else if r.Index >= n-1 {
			r.Direction = -1
		}
		cmds = append(allOff(fixtures), on(fixtures[r.Index%n], brightness))
		r.Index += r.Direction
		if n == 1 {
			r.Index, r.Direction = 0, 1
		}

	default:
		r.Index = (r.Index + 1) % n
	}
	return cmds
}

// rotate shifts every fixture's state one position along the ring.
func rotate(fixtures []string, lookup StateLookup) []fixture.Command {
	n := len(fixtures)
	states := make([]fixture.State, n)
	for i, id := range fixtures {
		if s, ok := lookup(id); ok {
			states[i] = s
		}
	}

	cmds := make([]fixture.Command, n)
	for i, id := range fixtures {
		prev := states[(i-1+n)%n]
		cmds[i] = fixture.Command{FixtureID: id, Update: prev.AsUpdate().WithTransition(1)}
	}
	return cmds
}

func (r *Run) ripple(fixtures []string, brightness uint8) []fixture.Command {
	n := len(fixtures)
	var cmds []fixture.Command

	r.Trail = append(r.Trail, r.Index%n)
	if len(r.Trail) > maxTrail {
		evicted := r.Trail[0]
		r.Trail = append([]int(nil), r.Trail[1:]...)
		if evicted < n {
			cmds = append(cmds, off(fixtures[evicted]))
		}
	}

	levels := rippleLevels[len(r.Trail)]
	for i, idx := range r.Trail {
		if idx >= n {
			continue
		}
		cmds = append(cmds, on(fixtures[idx], scale(brightness, levels[i])))
	}
	return cmds
}

func scale(b uint8, factor float64) uint8 {
	v := math.Round(float64(b) * factor)
	if v < 1 {
		return 1
	}
	return uint8(v)
}

func allOff(fixtures []string) []fixture.Command {
	cmds := make([]fixture.Command, len(fixtures))
	for i, id := range fixtures {
		cmds[i] = off(id)
	}
	return cmds
}

func off(id string) fixture.Command {
	return fixture.Command{FixtureID: id, Update: fixture.Update{On: fixture.Ptr(false)}.WithTransition(0)}
}

func on(id string, bri uint8) fixture.Command {
	return fixture.Command{FixtureID: id, Update: fixture.Update{On: fixture.Ptr(true), Bri: fixture.Ptr(bri)}.WithTransition(0)}
}
