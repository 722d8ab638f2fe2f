package renderer

import (
	"github.com/MeKo-Tech/osmraster/internal/draw"
	"github.com/MeKo-Tech/osmraster/internal/geodata"
	"github.com/MeKo-Tech/osmraster/internal/mapcss"
)

// wayPoints projects a way's nodes into the pixel grid.
func wayPoints(w geodata.Way, zoom uint8, scale int) []draw.Point {
	points := make([]draw.Point, 0, w.NodeCount())
	for i := 0; i < w.NodeCount(); i++ {
		points = append(points, draw.PointFromNode(w.Node(i), zoom, scale))
	}
	return points
}

// wayPointPairs returns the way's consecutive segment pairs.
func wayPointPairs(w geodata.Way, zoom uint8, scale int) []draw.PointPair {
	points := wayPoints(w, zoom, scale)
	pairs := make([]draw.PointPair, 0, len(points))
	for i := 1; i < len(points); i++ {
		pairs = append(pairs, draw.PointPair{P1: points[i-1], P2: points[i]})
	}
	return pairs
}

// multipolygonPointPairs flattens every ring of a multipolygon into segment
// pairs.
func multipolygonPointPairs(mp geodata.Multipolygon, zoom uint8, scale int) []draw.PointPair {
	var pairs []draw.PointPair
	for i := 0; i < mp.PolygonCount(); i++ {
		poly := mp.Polygon(i)
		var prev draw.Point
		for j := 0; j < poly.NodeCount(); j++ {
			cur := draw.PointFromNode(poly.Node(j), zoom, scale)
			if j > 0 {
				pairs = append(pairs, draw.PointPair{P1: prev, P2: cur})
			}
			prev = cur
		}
	}
	return pairs
}

// centroid averages a point list.
func centroid(points []draw.Point) (float64, float64, bool) {
	if len(points) == 0 {
		return 0, 0, false
	}
	var x, y float64
	for _, p := range points {
		x += float64(p.X)
		y += float64(p.Y)
	}
	n := float64(len(points))
	return x / n, y / n, true
}

// labelTarget binds a styled entity to a zoom and scale for the text placer.
type labelTarget struct {
	centerX, centerY float64
	hasCenter        bool
	waypoints        []draw.Point
}

// Center implements fontrast.Labelable.
func (l labelTarget) Center() (float64, float64, bool) {
	return l.centerX, l.centerY, l.hasCenter
}

// Waypoints implements fontrast.Labelable.
func (l labelTarget) Waypoints() ([]draw.Point, bool) {
	return l.waypoints, len(l.waypoints) > 0
}

// makeLabelTarget resolves the concrete entity behind a style target.
func makeLabelTarget(target mapcss.StyleTarget, zoom uint8, scale int) labelTarget {
	var lt labelTarget

	switch e := target.(type) {
	case mapcss.NodeTarget:
		p := draw.PointFromNode(e.Node, zoom, scale)
		lt.centerX, lt.centerY, lt.hasCenter = float64(p.X), float64(p.Y), true
	case mapcss.WayTarget:
		points := wayPoints(e.Way, zoom, scale)
		lt.centerX, lt.centerY, lt.hasCenter = centroid(points)
		lt.waypoints = points
	case mapcss.MultipolygonTarget:
		var points []draw.Point
		for i := 0; i < e.PolygonCount(); i++ {
			poly := e.Polygon(i)
			for j := 0; j < poly.NodeCount(); j++ {
				points = append(points, draw.PointFromNode(poly.Node(j), zoom, scale))
			}
		}
		lt.centerX, lt.centerY, lt.hasCenter = centroid(points)
	}
	return lt
}

// areaPointPairs resolves the outline segments of a styled area target.
func areaPointPairs(target mapcss.StyleTarget, zoom uint8, scale int) []draw.PointPair {
	switch e := target.(type) {
	case mapcss.WayTarget:
		return wayPointPairs(e.Way, zoom, scale)
	case mapcss.MultipolygonTarget:
		return multipolygonPointPairs(e.Multipolygon, zoom, scale)
	}
	return nil
}
