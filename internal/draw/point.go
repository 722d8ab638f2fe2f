package draw

import (
	"math"

	"github.com/MeKo-Tech/osmraster/internal/geodata"
	"github.com/MeKo-Tech/osmraster/internal/tile"
)

// Point is a pixel position in the global pixel grid of a zoom level,
// already multiplied by the render scale.
type Point struct {
	X, Y int
}

// PointFromNode projects a node into the pixel grid.
func PointFromNode(n geodata.Node, zoom uint8, scale int) Point {
	x, y := tile.CoordsToXY(n.Lat(), n.Lon(), zoom)
	return Point{
		X: int(x * float64(scale)),
		Y: int(y * float64(scale)),
	}
}

// Dist returns the Euclidean distance to another point.
func (p Point) Dist(other Point) float64 {
	dx := float64(other.X - p.X)
	dy := float64(other.Y - p.Y)
	return math.Hypot(dx, dy)
}

// PointPair is one segment of a polyline or polygon outline.
type PointPair struct {
	P1, P2 Point
}
