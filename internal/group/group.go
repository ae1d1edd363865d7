// Package group holds the panel's fixture groups, their scenes and the
// registry that keeps them ordered and persisted.
package group

import "github.com/dokzlo13/lightdeck/internal/fixture"

// UnassignedID is the catch-all group. It always exists and cannot be deleted.
const UnassignedID = "group-unassigned"

// Defaults for new groups.
const (
	DefaultBrightness uint8 = 254
	DefaultColor            = "#FFFFFF"
	DefaultTempo            = 120
	DefaultName             = "Group"
	unassignedName          = "Unassigned Lights"
)

// ChaseMode selects the pattern a running chase draws.
type ChaseMode string

const (
	ChaseOff      ChaseMode = "off"
	ChaseRotate   ChaseMode = "rotate"
	ChaseLeft     ChaseMode = "left"
	ChaseRight    ChaseMode = "right"
	ChaseClassic  ChaseMode = "classic"
	ChaseRipple   ChaseMode = "ripple"
	ChasePingPong ChaseMode = "ping-pong"
)

// Valid reports whether m is a known mode.
func (m ChaseMode) Valid() bool {
	switch m {
	case ChaseOff, ChaseRotate, ChaseLeft, ChaseRight, ChaseClassic, ChaseRipple, ChasePingPong:
		return true
	}
	return false
}

// FlashMode is the stored flash style of a group.
type FlashMode string

const (
	FlashOff       FlashMode = "off"
	FlashStaggered FlashMode = "staggered"
	FlashRolling   FlashMode = "rolling"
	FlashRandom    FlashMode = "random"
	FlashPulsing   FlashMode = "pulsing"
)

// Valid reports whether m is a known flash mode.
func (m FlashMode) Valid() bool {
	switch m {
	case FlashOff, FlashStaggered, FlashRolling, FlashRandom, FlashPulsing:
		return true
	}
	return false
}

// SceneFixture is one captured fixture inside a scene.
type SceneFixture struct {
	ID    string        `json:"id"`
	State fixture.State `json:"state"`
}

// Scene is a saved snapshot replayable on its group.
type Scene struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	TransitionTime uint16         `json:"transition_time"`
	Flash          bool           `json:"flash"`
	Fixtures       []SceneFixture `json:"fixtures"`
}

// Group is a user-defined set of fixtures sharing tempo, effects and scenes.
type Group struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Fixtures []string `json:"fixtures"`
	Scenes   []Scene  `json:"scenes"`

	Brightness  uint8     `json:"brightness"`
	Color       string    `json:"color"`
	Tempo       int       `json:"tempo"`
	TempoLocked bool      `json:"tempo_locked"`
	ChaseMode   ChaseMode `json:"chase_mode"`
	FlashMode   FlashMode `json:"flash_mode"`

	ToggleFlash     bool `json:"toggle_flash"`
	Strobe          bool `json:"strobe"`
	Collapsed       bool `json:"collapsed"`
	EffectsExpanded bool `json:"effects_expanded"`
}

// New returns a group with default attributes.
func New(id, name string, tempo int) Group {
	return Group{
		ID:          id,
		Name:        name,
		Fixtures:    []string{},
		Scenes:      []Scene{},
		Brightness:  DefaultBrightness,
		Color:       DefaultColor,
		Tempo:       tempo,
		TempoLocked: true,
		ChaseMode:   ChaseOff,
		FlashMode:   FlashOff,
	}
}

// Clone returns a deep copy.
func (g Group) Clone() Group {
	g.Fixtures = append([]string{}, g.Fixtures...)
	scenes := make([]Scene, len(g.Scenes))
	for i, s := range g.Scenes {
		s.Fixtures = append([]SceneFixture{}, s.Fixtures...)
		scenes[i] = s
	}
	g.Scenes = scenes
	return g
}

// Scene returns the scene at index.
func (g Group) Scene(index int) (Scene, bool) {
	if index < 0 || index >= len(g.Scenes) {
		return Scene{}, false
	}
	return g.Scenes[index], true
}

// BaselineBrightness is the brightness chases light fixtures at.
func (g Group) BaselineBrightness() uint8 {
	if g.Brightness == 0 {
		return DefaultBrightness
	}
	return g.Brightness
}

// normalize fills attributes missing from older persisted groups.
func (g *Group) normalize() {
	if g.Fixtures == nil {
		g.Fixtures = []string{}
	}
	if g.Scenes == nil {
		g.Scenes = []Scene{}
	}
	if !g.ChaseMode.Valid() {
		g.ChaseMode = ChaseOff
	}
	if !g.FlashMode.Valid() {
		g.FlashMode = FlashOff
	}
	if g.Brightness == 0 {
		g.Brightness = DefaultBrightness
	}
	if g.Color == "" {
		g.Color = DefaultColor
	}
}
