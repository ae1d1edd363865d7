package panel

import (
	"time"

	"github.com/dokzlo13/lightdeck/internal/tempo"
)

// Fade selects the transition of a power intent.
type Fade string

const (
	FadeInstant Fade = "instant"
	FadeOne     Fade = "1s"
	FadeFive    Fade = "5s"
	FadeTempo   Fade = "tempo"
)

// ParseFade maps an API value to a Fade. Empty means instant.
func ParseFade(s string) (Fade, bool) {
	switch f := Fade(s); f {
	case "":
		return FadeInstant, true
	case FadeInstant, FadeOne, FadeFive, FadeTempo:
		return f, true
	}
	return "", false
}

func (f Fade) transition(groupTempo int) uint16 {
	switch f {
	case FadeOne:
		return 10
	case FadeFive:
		return 50
	case FadeTempo:
		return tempo.Transition(groupTempo)
	}
	return 0
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
