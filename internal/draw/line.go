package draw

import (
	"math"

	"github.com/MeKo-Tech/osmraster/internal/mapcss"
)

// DrawLines rasterizes a polyline with thickness, anti-aliasing, dashes and
// caps into the figure. The dash phase carries over between consecutive
// segments.
func DrawLines(figure *Figure, pairs []PointPair, width float64, color mapcss.Color, opacity float64, dashes []float64, lineCap *mapcss.LineCap) {
	calc := NewOpacityCalculator(width/2, dashes, lineCap)
	for _, pair := range pairs {
		drawThickLine(figure, pair.P1, pair.P2, color, opacity, calc)
		calc.AddTraveledDistance(pair.P1.Dist(pair.P2))
	}
}

// drawThickLine walks the segment's spine with Bresenham and emits a
// perpendicular span at every spine pixel. Mostly inspired by Murphy's
// thick-line modification, http://kt8216.unixcab.org/murphy/index.html.
func drawThickLine(figure *Figure, p1, p2 Point, color mapcss.Color, opacity float64, calc *OpacityCalculator) {
	abs := func(v int) int {
		if v < 0 {
			return -v
		}
		return v
	}
	inc := func(from, to int) int {
		if from <= to {
			return 1
		}
		return -1
	}

	dx, dy := abs(p2.X-p1.X), abs(p2.Y-p1.Y)
	shouldSwap := dx > dy

	swapIf := func(a, b int) (int, int) {
		if shouldSwap {
			return b, a
		}
		return a, b
	}

	// mn runs along the minor axis, mx along the major one.
	mn, mx := swapIf(p1.X, p1.Y)
	mnLast, mxLast := swapIf(p2.X, p2.Y)
	mnDelta, mxDelta := swapIf(dx, dy)
	mnInc, mxInc := swapIf(inc(p1.X, p2.X), inc(p1.Y, p2.Y))

	updateError := func(err *int) bool {
		corrected := false
		if *err+2*mnDelta > mxDelta {
			*err -= 2 * mxDelta
			corrected = true
		}
		*err += 2 * mnDelta
		return corrected
	}

	centerDistNumerConst := float64(p2.X*p1.Y - p2.Y*p1.X)
	centerDistDenom := math.Sqrt(float64(dy*dy + dx*dx))

	drawPerpendiculars := func(mn, mx, pError int) {
		drawOne := func(mul int) {
			pMn := mx
			pMx := mn
			err := mul * pError
			for {
				perpX, perpY := swapIf(pMx, pMn)

				centerDistNumer := centerDistNumerConst +
					float64((p2.Y-p1.Y)*perpX-(p2.X-p1.X)*perpY)
				centerDist := math.Abs(centerDistNumer) / centerDistDenom

				longStartDist := Point{X: perpX, Y: perpY}.Dist(p1)
				startDistSq := longStartDist*longStartDist - centerDist*centerDist
				if startDistSq < 0 {
					startDistSq = 0
				}
				startDist := math.Sqrt(startDistSq)

				od := calc.Calculate(centerDist, startDist)
				if !od.IsInLine {
					break
				}
				if od.Opacity > 0 {
					figure.Add(perpX, perpY, RGBAFromColor(color, opacity*od.Opacity))
				}

				if updateError(&err) {
					pMn -= mul * mxInc
				}
				pMx += mul * mnInc
			}
		}

		drawOne(1)
		drawOne(-1)
	}

	var err, pError int
	for {
		drawPerpendiculars(mn, mx, pError)

		if mn == mnLast && mx == mxLast {
			break
		}

		if updateError(&err) {
			mn += mnInc
			if updateError(&pError) {
				drawPerpendiculars(mn, mx, pError)
			}
		}
		mx += mxInc
	}
}
