package tempo

import (
	"math"
	"testing"
	"time"
)

func TestDurationFromTempo(t *testing.T) {
	tests := []struct {
		tempo int
		want  int
	}{
		{-5, 0},
		{0, 0},
		{1, 2},
		{30, 10},
		{60, 19},
		{120, 50},
		{200, 158},
		{300, 603},
	}

	for _, tt := range tests {
		if got := DurationFromTempo(tt.tempo); got != tt.want {
			t.Errorf("DurationFromTempo(%d) = %d, want %d", tt.tempo, got, tt.want)
		}
	}
}

func TestDurationFromTempoMonotonic(t *testing.T) {
	prev := DurationFromTempo(0)
	for tempo := 1; tempo <= 600; tempo++ {
		got := DurationFromTempo(tempo)
		if got < prev {
			t.Fatalf("curve decreased at tempo %d: %d < %d", tempo, got, prev)
		}
		if again := DurationFromTempo(tempo); again != got {
			t.Fatalf("tempo %d not deterministic: %d vs %d", tempo, got, again)
		}
		prev = got
	}
}

func TestTransitionClamped(t *testing.T) {
	if got := Transition(2000); got != math.MaxUint16 {
		t.Errorf("Transition(2000) = %d, want %d", got, math.MaxUint16)
	}
	if got := Transition(120); got != 50 {
		t.Errorf("Transition(120) = %d, want 50", got)
	}
}

func TestChaseInterval(t *testing.T) {
	tests := []struct {
		name  string
		tempo int
		want  time.Duration
	}{
		{"zero falls back", 0, 500 * time.Millisecond},
		{"negative falls back", -1, 500 * time.Millisecond},
		{"60 bpm", 60, time.Second},
		{"120 bpm", 120, 500 * time.Millisecond},
		{"240 bpm", 240, 250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChaseInterval(tt.tempo); got != tt.want {
				t.Errorf("ChaseInterval(%d) = %v, want %v", tt.tempo, got, tt.want)
			}
		})
	}
}
