// Package draw implements the software rasterizer: the per-entity scratch
// figure, the premultiplied tile buffer, thick anti-aliased lines, scanline
// polygon fill, bitmap icons and PNG output.
package draw

import "github.com/MeKo-Tech/osmraster/internal/mapcss"

// RGBA is a premultiplied-alpha color with components in [0, 1].
// The color channels already incorporate the alpha factor, which keeps
// source-over compositing a single multiply-add per channel.
type RGBA struct {
	R, G, B, A float64
}

// RGBAFromColor premultiplies a plain RGB color with an opacity.
func RGBAFromColor(c mapcss.Color, opacity float64) RGBA {
	premultiply := func(comp uint8) float64 {
		return opacity * float64(comp) / 255
	}
	return RGBA{
		R: premultiply(c.R),
		G: premultiply(c.G),
		B: premultiply(c.B),
		A: opacity,
	}
}

// RGBAFromComponents premultiplies straight 8-bit RGBA components.
func RGBAFromComponents(r, g, b, a uint8) RGBA {
	return RGBAFromColor(mapcss.Color{R: r, G: g, B: b}, float64(a)/255)
}
