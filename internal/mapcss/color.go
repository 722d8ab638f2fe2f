// Package mapcss evaluates parsed MapCSS rules into flat per-entity styles.
//
// The textual MapCSS dialect is handled by an external toolchain; this
// package consumes the structured rule list it produces and implements the
// cascade, the per-tag-subset style cache and the color model.
package mapcss

import "fmt"

// Color is a plain RGB triple as used by MapCSS properties.
type Color struct {
	R, G, B uint8
}

// colorNames is the closed set of color identifiers the cascade accepts.
var colorNames = map[string]Color{
	"white":  {255, 255, 255},
	"black":  {0, 0, 0},
	"blue":   {0, 0, 255},
	"brown":  {165, 42, 42},
	"green":  {0, 255, 0},
	"grey":   {128, 128, 128},
	"pink":   {255, 192, 203},
	"purple": {128, 0, 128},
	"red":    {255, 0, 0},
	"salmon": {250, 128, 114},
}

// FromColorName resolves one of the ten known color identifiers.
func FromColorName(name string) (Color, bool) {
	c, ok := colorNames[name]
	return c, ok
}

// ParseHexColor parses a "#rrggbb" literal.
func ParseHexColor(s string) (Color, error) {
	var c Color
	if len(s) != 7 || s[0] != '#' {
		return c, fmt.Errorf("invalid color literal %q", s)
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("invalid color literal %q: %w", s, err)
	}
	return c, nil
}
