// Package tempo maps the panel's tempo value to fixture timings.
package tempo

import (
	"math"
	"time"
)

// Curve constants, fit so that tempo 30 is about 1s, 120 about 5s and 300
// about 60s. Saved groups display values derived from them.
const (
	curveScale    = 0.1835
	curveExponent = 0.3954
	curveGrowth   = 0.01180
)

// FallbackInterval is the chase tick used when a group has no tempo.
const FallbackInterval = 500 * time.Millisecond

// maxTransition is the largest transition the bridge accepts.
const maxTransition = math.MaxUint16

// DurationFromTempo returns the transition time in tenths of a second.
// Non-positive tempos are instantaneous.
func DurationFromTempo(t int) int {
	if t <= 0 {
		return 0
	}
	x := float64(t)
	seconds := curveScale * math.Pow(x, curveExponent) * math.Exp(curveGrowth*x)
	return int(math.Round(seconds * 10))
}

// Transition is DurationFromTempo clamped to the bridge's transitiontime range.
func Transition(t int) uint16 {
	d := DurationFromTempo(t)
	if d > maxTransition {
		return maxTransition
	}
	return uint16(d)
}

// ChaseInterval returns the period between chase ticks: one beat per tick.
func ChaseInterval(t int) time.Duration {
	if t <= 0 {
		return FallbackInterval
	}
	return time.Duration(60000 / float64(t) * float64(time.Millisecond))
}
