// Package fixture models individual lights: their mirrored state, the
// partial updates sent to the bridge, and the local mirror table.
package fixture

import "context"

// Alert is the bridge's attention effect.
type Alert string

const (
	AlertNone       Alert = "none"
	AlertSelect     Alert = "select"
	AlertLongSelect Alert = "lselect"
)

// Color modes reported by the bridge.
const (
	ColorModeHS = "hs"
	ColorModeCT = "ct"
	ColorModeXY = "xy"
)

// State is the mirrored state of one fixture.
type State struct {
	On        bool    `json:"on"`
	Bri       uint8   `json:"bri,omitempty"`
	Hue       *uint16 `json:"hue,omitempty"`
	Sat       *uint8  `json:"sat,omitempty"`
	Ct        *uint16 `json:"ct,omitempty"`
	ColorMode string  `json:"colormode,omitempty"`
	Alert     Alert   `json:"alert,omitempty"`
}

// Update is a partial state change. Nil fields are left untouched by the
// bridge and by Merge. It marshals directly into a v1 light state body.
type Update struct {
	On             *bool   `json:"on,omitempty"`
	Bri            *uint8  `json:"bri,omitempty"`
	Hue            *uint16 `json:"hue,omitempty"`
	Sat            *uint8  `json:"sat,omitempty"`
	Ct             *uint16 `json:"ct,omitempty"`
	TransitionTime *uint16 `json:"transitiontime,omitempty"`
	Alert          Alert   `json:"alert,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Merge applies u on top of s. Fields present in u win, absent fields keep
// their current value. TransitionTime has no mirrored counterpart.
func Merge(s State, u Update) State {
	if u.On != nil {
		s.On = *u.On
	}
	if u.Bri != nil {
		s.Bri = *u.Bri
	}
	if u.Hue != nil {
		s.Hue = u.Hue
		s.ColorMode = ColorModeHS
	}
	if u.Sat != nil {
		s.Sat = u.Sat
		s.ColorMode = ColorModeHS
	}
	if u.Ct != nil {
		s.Ct = u.Ct
		s.ColorMode = ColorModeCT
	}
	if u.Alert != "" {
		s.Alert = u.Alert
	}
	return s
}

// Merge returns u with every field set in next overriding it.
func (u Update) Merge(next Update) Update {
	if next.On != nil {
		u.On = next.On
	}
	if next.Bri != nil {
		u.Bri = next.Bri
	}
	if next.Hue != nil {
		u.Hue = next.Hue
	}
	if next.Sat != nil {
		u.Sat = next.Sat
	}
	if next.Ct != nil {
		u.Ct = next.Ct
	}
	if next.TransitionTime != nil {
		u.TransitionTime = next.TransitionTime
	}
	if next.Alert != "" {
		u.Alert = next.Alert
	}
	return u
}

// WithTransition returns a copy of u with the transition time set.
func (u Update) WithTransition(tt uint16) Update {
	u.TransitionTime = &tt
	return u
}

// WithAlert returns a copy of u with the alert set.
func (u Update) WithAlert(a Alert) Update {
	u.Alert = a
	return u
}

// Empty reports whether u changes nothing.
func (u Update) Empty() bool {
	return u == Update{}
}

// Capture returns s as stored in a scene: the transient alert is dropped.
func Capture(s State) State {
	s.Alert = ""
	return s
}

// AsUpdate converts a full state into the update that reproduces it. Only
// the color fields matching the color mode are sent.
func (s State) AsUpdate() Update {
	u := Update{On: Ptr(s.On)}
	if s.Bri != 0 {
		u.Bri = Ptr(s.Bri)
	}
	switch s.ColorMode {
	case ColorModeCT:
		u.Ct = s.Ct
	case ColorModeHS, ColorModeXY:
		u.Hue, u.Sat = s.Hue, s.Sat
	default:
		u.Hue, u.Sat, u.Ct = s.Hue, s.Sat, s.Ct
	}
	return u
}

// Command addresses an update to one fixture.
type Command struct {
	FixtureID string
	Update    Update
}

// Coalesce folds several commands for the same fixture into one, in the
// order each fixture first appears. Later updates win field by field.
func Coalesce(cmds []Command) []Command {
	index := make(map[string]int, len(cmds))
	out := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		if i, ok := index[c.FixtureID]; ok {
			out[i].Update = out[i].Update.Merge(c.Update)
			continue
		}
		index[c.FixtureID] = len(out)
		out = append(out, c)
	}
	return out
}

// Gateway sends a state change to a single fixture.
type Gateway interface {
	SetState(ctx context.Context, id string, u Update) error
}

// Discoverer lists the fixtures currently known to the bridge.
type Discoverer interface {
	Fixtures(ctx context.Context) ([]Fixture, error)
}
