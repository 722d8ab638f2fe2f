package draw

import (
	"math"

	"github.com/MeKo-Tech/osmraster/internal/mapcss"
)

// OpacityCalculator computes anti-aliased pixel coverage for thick lines.
// The coverage is the minimum of two feathered factors: distance from the
// line's center axis, and position along the dash pattern. Non-butt caps
// widen every on-dash by half the line width, which squares the dash ends;
// round caps also shrink the effective half width inside the cap region,
// which rounds them.
type OpacityCalculator struct {
	halfLineWidth    float64
	dashes           []dashSegment
	totalDashLen     float64
	traveledDistance float64
}

// OpacityData is the coverage verdict for one candidate pixel.
type OpacityData struct {
	Opacity float64
	// IsInLine is false once the pixel is beyond the feathered edge of the
	// line; the perpendicular walk stops there.
	IsInLine bool
}

type dashSegment struct {
	startFrom  float64
	startTo    float64
	endFrom    float64
	endTo      float64
	opacityMul float64

	// hasCapRegion marks round-capped dashes; capStart/capEnd are the dash's
	// original endpoints before widening.
	hasCapRegion bool
	capStart     float64
	capEnd       float64
}

// NewOpacityCalculator builds the dash table once per drawn line. A nil
// lineCap means butt ends.
func NewOpacityCalculator(halfLineWidth float64, dashes []float64, lineCap *mapcss.LineCap) *OpacityCalculator {
	c := &OpacityCalculator{halfLineWidth: halfLineWidth}
	if len(dashes) > 0 {
		c.computeSegments(dashes, lineCap)
	}
	return c
}

// AddTraveledDistance advances the dash phase across segment joins so that
// patterns stay continuous along a polyline.
func (c *OpacityCalculator) AddTraveledDistance(distance float64) {
	c.traveledDistance += distance
}

// Calculate combines the dash-phase and center-distance coverages for a
// pixel at the given distances.
func (c *OpacityCalculator) Calculate(centerDistance, startDistance float64) OpacityData {
	sdOpacity, capDist, inCap := c.opacityByStartDistance(startDistance)

	halfWidth := c.halfLineWidth
	if inCap {
		reduced := c.halfLineWidth*c.halfLineWidth - capDist*capDist
		if reduced < 0 {
			reduced = 0
		}
		halfWidth = math.Sqrt(reduced)
	}

	cdOpacity := opacityByCenterDistance(centerDistance, halfWidth)
	return OpacityData{
		Opacity:  math.Min(sdOpacity, cdOpacity),
		IsInLine: cdOpacity > 0,
	}
}

// opacityByStartDistance returns the dash coverage plus, for capped dashes,
// the distance past the nearest original dash endpoint.
func (c *OpacityCalculator) opacityByStartDistance(startDistance float64) (opacity, capDist float64, inCap bool) {
	if len(c.dashes) == 0 {
		return 1, 0, false
	}

	distRem := c.traveledDistance + startDistance
	if c.totalDashLen > 0 {
		distRem = math.Mod(distRem, c.totalDashLen)
	}

	for i := range c.dashes {
		d := &c.dashes[i]
		segOpacity, ok := d.opacityAt(distRem)
		if !ok {
			continue
		}
		if segOpacity > opacity {
			opacity = segOpacity
		}
		if d.hasCapRegion {
			dist := d.capDistanceAt(distRem)
			if !inCap || dist < capDist {
				capDist = dist
				inCap = true
			}
		}
	}
	return opacity, capDist, inCap
}

func (d *dashSegment) opacityAt(dist float64) (float64, bool) {
	var base float64
	switch {
	case dist < d.startFrom || dist > d.endTo:
		return 0, false
	case dist <= d.startTo:
		base = (dist - d.startFrom) / (d.startTo - d.startFrom)
	case dist < d.endFrom:
		base = 1
	default:
		base = (d.endTo - dist) / (d.endTo - d.endFrom)
	}
	return d.opacityMul * base, true
}

func (d *dashSegment) capDistanceAt(dist float64) float64 {
	switch {
	case dist < d.capStart:
		return d.capStart - dist
	case dist <= d.capEnd:
		return 0
	default:
		return dist - d.capEnd
	}
}

func (c *OpacityCalculator) computeSegments(dashes []float64, lineCap *mapcss.LineCap) {
	nonTrivialCap := lineCap != nil && (*lineCap == mapcss.CapRound || *lineCap == mapcss.CapSquare)
	roundCap := lineCap != nil && *lineCap == mapcss.CapRound

	// Walk the pattern once, then revisit the first dash so the very first
	// cap is not missed when the pattern wraps.
	indexes := make([]int, 0, len(dashes)+1)
	for i := range dashes {
		indexes = append(indexes, i)
	}
	indexes = append(indexes, 0)

	for _, idx := range indexes {
		dash := dashes[idx]
		start := c.totalDashLen

		if idx != 0 || len(c.dashes) == 0 {
			c.totalDashLen += dash
		}

		if idx%2 != 0 {
			continue
		}

		end := start + dash

		seg := dashSegment{
			hasCapRegion: roundCap,
			capStart:     start,
			capEnd:       end,
		}

		if nonTrivialCap {
			start -= c.halfLineWidth
			end += c.halfLineWidth
		}

		midpoint := (start + end) / 2

		seg.startFrom = math.Min(start-0.5, midpoint-1)
		seg.startTo = math.Min(start+0.5, midpoint)
		seg.endFrom = math.Max(end-0.5, midpoint)
		seg.endTo = math.Max(end+0.5, midpoint+1)
		seg.opacityMul = math.Min(end-start, 1)

		c.dashes = append(c.dashes, seg)
	}
}

func opacityByCenterDistance(centerDistance, halfLineWidth float64) float64 {
	featherFrom := math.Max(halfLineWidth-0.5, 0)
	featherTo := math.Max(halfLineWidth+0.5, 1)
	featherDist := featherTo - featherFrom
	opacityMul := math.Min(2*halfLineWidth, 1)

	switch {
	case centerDistance < featherFrom:
		return opacityMul
	case centerDistance < featherTo:
		return opacityMul * (featherTo - centerDistance) / featherDist
	}
	return 0
}
