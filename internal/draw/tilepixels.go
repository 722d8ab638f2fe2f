package draw

import (
	"math"

	"github.com/MeKo-Tech/osmraster/internal/tile"
)

// RGBTriples is a row-major list of finalized RGB pixels.
type RGBTriples [][3]uint8

// TilePixels is the per-tile render buffer. Pixels are stored premultiplied;
// the divide by alpha happens once, in ToRGBTriples.
type TilePixels struct {
	pixels    []RGBA
	dimension int
}

// NewTilePixels allocates a buffer of (256*scale)^2 pixels, initially opaque
// black.
func NewTilePixels(scale int) *TilePixels {
	dimension := tile.Size * scale
	pixels := make([]RGBA, dimension*dimension)
	for i := range pixels {
		pixels[i] = RGBA{A: 1}
	}
	return &TilePixels{pixels: pixels, dimension: dimension}
}

// Dimension returns the buffer's edge length in pixels.
func (tp *TilePixels) Dimension() int { return tp.dimension }

// SetPixel blends c over the stored pixel (source-over, premultiplied).
func (tp *TilePixels) SetPixel(x, y int, c RGBA) {
	idx := y*tp.dimension + x
	old := tp.pixels[idx]
	blend := func(newVal, oldVal float64) float64 {
		return newVal + (1-c.A)*oldVal
	}
	tp.pixels[idx] = RGBA{
		R: blend(c.R, old.R),
		G: blend(c.G, old.G),
		B: blend(c.B, old.B),
		A: blend(c.A, old.A),
	}
}

// Fill blends c over every pixel; used for the stylesheet's canvas color.
func (tp *TilePixels) Fill(c RGBA) {
	for y := 0; y < tp.dimension; y++ {
		for x := 0; x < tp.dimension; x++ {
			tp.SetPixel(x, y, c)
		}
	}
}

// ToRGBTriples divides out the alpha and quantizes each pixel to 8 bits.
func (tp *TilePixels) ToRGBTriples() RGBTriples {
	result := make(RGBTriples, 0, len(tp.pixels))
	for _, p := range tp.pixels {
		postdivide := func(val float64) uint8 {
			if p.A == 0 {
				return 0
			}
			scaled := math.Round(255 * val / p.A)
			if scaled > 255 {
				return 255
			}
			if scaled < 0 {
				return 0
			}
			return uint8(scaled)
		}
		result = append(result, [3]uint8{postdivide(p.R), postdivide(p.G), postdivide(p.B)})
	}
	return result
}
