package fontrast

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/osmraster/internal/draw"
	"github.com/MeKo-Tech/osmraster/internal/mapcss"
)

// Rasterizer accumulates signed trapezoidal coverage for glyph outlines.
// For every scanline it keeps two sparse maps: `a` holds the partial
// coverage of pixels an edge passes through, and `s` holds the vertical
// contribution carried to every pixel right of the edge's last column.
type Rasterizer struct {
	stripes map[int]*stripe
	color   mapcss.Color
}

type stripe struct {
	a map[int]float64
	s map[int]float64
}

// NewRasterizer creates an empty accumulator that emits pixels of the given
// color.
func NewRasterizer(color mapcss.Color) *Rasterizer {
	return &Rasterizer{
		stripes: make(map[int]*stripe),
		color:   color,
	}
}

func (r *Rasterizer) stripeAt(y int) *stripe {
	st, ok := r.stripes[y]
	if !ok {
		st = &stripe{a: make(map[int]float64), s: make(map[int]float64)}
		r.stripes[y] = st
	}
	return st
}

// DrawLine adds one straight outline edge. Horizontal edges contribute no
// vertical coverage and are skipped.
func (r *Rasterizer) DrawLine(x0, y0, x1, y1 float64) {
	delta := y1 - y0
	if delta == 0 {
		return
	}

	sign := 1.0
	if y0 > y1 {
		sign = -1.0
	}

	slope := (x1 - x0) / delta
	evalXAtY := func(y float64) float64 { return x0 + (y-y0)*slope }
	evalYAtX := func(x float64) float64 { return y0 + (x-x0)/slope }

	yMin := math.Min(y0, y1)
	yMax := math.Max(y0, y1)

	for y := int(math.Floor(yMin)); y <= int(math.Floor(yMax)); y++ {
		cur := r.stripeAt(y)

		yBottom := math.Max(float64(y), yMin)
		yTop := math.Min(float64(y+1), yMax)
		yDelta := yTop - yBottom

		xAtBottom := evalXAtY(yBottom)
		xAtTop := evalXAtY(yTop)

		flipEdge := false
		xSmallest, xLargest := xAtBottom, xAtTop
		if xAtBottom > xAtTop {
			flipEdge = true
			xSmallest, xLargest = xAtTop, xAtBottom
		}

		xTo := int(math.Floor(xLargest))
		for x := int(math.Floor(xSmallest)); x <= xTo; x++ {
			xLeft := math.Max(float64(x), xSmallest)
			xNext := float64(x + 1)
			xRight := math.Min(xNext, xLargest)

			pixelArea := (xNext - xRight) * yDelta
			trapezoidWidth := xRight - xLeft
			if trapezoidWidth > 0 {
				yAtLeft := evalYAtX(xLeft)
				yAtRight := evalYAtX(xRight)

				var trapezoidHeight float64
				if flipEdge {
					trapezoidHeight = (yTop - yAtLeft) + (yTop - yAtRight)
				} else {
					trapezoidHeight = (yAtLeft - yBottom) + (yAtRight - yBottom)
				}
				pixelArea += trapezoidWidth * trapezoidHeight / 2
			}
			cur.a[x] += sign * pixelArea
		}

		cur.s[xTo+1] += sign * yDelta
	}
}

// DrawQuad flattens a quadratic Bezier edge by de Casteljau subdivision
// until the chord approximates the arc within 0.01%.
func (r *Rasterizer) DrawQuad(x0, y0, x1, y1, x2, y2 float64) {
	d01 := math.Hypot(x1-x0, y1-y0)
	d12 := math.Hypot(x2-x1, y2-y1)
	d02 := math.Hypot(x2-x0, y2-y0)

	if d01+d12 <= 1.0001*d02 {
		r.DrawLine(x0, y0, x2, y2)
		return
	}

	m01x, m01y := (x0+x1)/2, (y0+y1)/2
	m12x, m12y := (x1+x2)/2, (y1+y2)/2
	m012x, m012y := (m01x+m12x)/2, (m01y+m12y)/2

	r.DrawQuad(x0, y0, m01x, m01y, m012x, m012y)
	r.DrawQuad(m012x, m012y, m12x, m12y, x2, y2)
}

// SaveToFigure sweeps every accumulated scanline left to right, resolving
// the carried coverage, and writes the resulting pixels into the figure.
func (r *Rasterizer) SaveToFigure(figure *draw.Figure) {
	xMin, xMax := math.MaxInt, math.MinInt
	for _, st := range r.stripes {
		for x := range st.a {
			if x < xMin {
				xMin = x
			}
			if x > xMax {
				xMax = x
			}
		}
		for x := range st.s {
			if x < xMin {
				xMin = x
			}
			if x > xMax {
				xMax = x
			}
		}
	}
	if xMin > xMax {
		return
	}

	ys := make([]int, 0, len(r.stripes))
	for y := range r.stripes {
		ys = append(ys, y)
	}
	sort.Ints(ys)

	for _, y := range ys {
		st := r.stripes[y]
		sAcc := 0.0
		for x := xMin; x <= xMax; x++ {
			sAcc += st.s[x]
			coverage := math.Abs(st.a[x] + sAcc)
			if coverage > 1 {
				coverage = 1
			}
			figure.Add(x, y, draw.RGBAFromColor(r.color, coverage))
		}
	}
}
