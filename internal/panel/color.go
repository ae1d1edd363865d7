package panel

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/dokzlo13/lightdeck/internal/fixture"
)

// Color is a panel color resolved to the bridge's hue/saturation scale.
type Color struct {
	Hex string
	Hue uint16
	Sat uint8
}

var rgbPattern = regexp.MustCompile(`^rgb\(\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*\)$`)

// ParseColor accepts "#rrggbb" or "rgb(r, g, b)".
func ParseColor(value string) (Color, error) {
	value = strings.TrimSpace(value)

	var c colorful.Color
	if m := rgbPattern.FindStringSubmatch(value); m != nil {
		var rgb [3]float64
		for i := range rgb {
			n, _ := strconv.Atoi(m[i+1])
			if n > 255 {
				return Color{}, fmt.Errorf("invalid color %q: component out of range", value)
			}
			rgb[i] = float64(n) / 255
		}
		c = colorful.Color{R: rgb[0], G: rgb[1], B: rgb[2]}
	} else {
		var err error
		if c, err = colorful.Hex(value); err != nil {
			return Color{}, fmt.Errorf("invalid color %q: %w", value, err)
		}
	}

	h, s, _ := c.Hsl()
	return Color{
		Hex: strings.ToUpper(c.Hex()),
		Hue: uint16(math.Round(h / 360 * 65535)),
		Sat: uint8(math.Round(s * 254)),
	}, nil
}

func (c Color) update() fixture.Update {
	return fixture.Update{
		On:  fixture.Ptr(true),
		Hue: fixture.Ptr(c.Hue),
		Sat: fixture.Ptr(c.Sat),
	}
}
