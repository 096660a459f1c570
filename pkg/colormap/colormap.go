// Package colormap provides color schemes for plot groups and density strips.
package colormap

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// LinearColormap maps normalized values [0, 1] to interpolated colors.
type LinearColormap struct {
	colors []color.RGBA
}

// At returns the color at position t (0-1).
func (c LinearColormap) At(t float64) color.Color {
	if t <= 0 {
		return c.colors[0]
	}
	if t >= 1 {
		return c.colors[len(c.colors)-1]
	}

	idx := t * float64(len(c.colors)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(c.colors) {
		upper = len(c.colors) - 1
	}

	frac := idx - float64(lower)
	return interpolate(c.colors[lower], c.colors[upper], frac)
}

func interpolate(c1, c2 color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c1.R) + t*(float64(c2.R)-float64(c1.R))),
		G: uint8(float64(c1.G) + t*(float64(c2.G)-float64(c1.G))),
		B: uint8(float64(c1.B) + t*(float64(c2.B)-float64(c1.B))),
		A: 255,
	}
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// Viridis shades the year histogram strip by bin density.
var Viridis = LinearColormap{
	colors: []color.RGBA{
		{68, 1, 84, 255},
		{72, 35, 116, 255},
		{64, 67, 135, 255},
		{52, 94, 141, 255},
		{41, 120, 142, 255},
		{32, 144, 140, 255},
		{34, 167, 132, 255},
		{68, 190, 112, 255},
		{121, 209, 81, 255},
		{189, 222, 38, 255},
		{253, 231, 37, 255},
	},
}

// Palette is an ordered list of hex colors assigned by index.
type Palette []string

// At returns the color for index i, cycling through the palette.
func (p Palette) At(i int) string {
	if len(p) == 0 {
		return "#ffffff"
	}
	return p[wrap(i, len(p))]
}

// Neon is the cluster palette.
var Neon = Palette{
	"#BC13FE", // Neon Purple
	"#FF00FF", // Neon Magenta
	"#04D9FF", // Neon Cyan
	"#39FF14", // Neon Green
	"#FFFF33", // Neon Yellow
	"#FF8C00", // Neon Orange
	"#FF073A", // Neon Red
	"#00FFFF", // Cyan
	"#FF1493", // Deep Pink
	"#32CD32", // Lime Green
	"#FFD700", // Gold
	"#FF4500", // Orange Red
	"#9370DB", // Medium Purple
	"#20B2AA", // Light Sea Green
	"#FF69B4", // Hot Pink
	"#00CED1", // Dark Turquoise
	"#FF6347", // Tomato
	"#8A2BE2", // Blue Violet
	"#00FF7F", // Spring Green
	"#FFB6C1", // Light Pink
}

// Bands holds the fixed year-band colors, oldest band first.
var Bands = Palette{
	"#BC13FE",
	"#FF00FF",
	"#04D9FF",
	"#39FF14",
	"#FFFF33",
	"#FF8C00",
	"#FF073A",
	"#FFFFFF",
}

// Named returns a palette by name. Unknown names fall back to Neon.
func Named(name string) Palette {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bands":
		return Bands
	default:
		return Neon
	}
}

// ParseHex parses "#RRGGBB" or "#RGB".
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
