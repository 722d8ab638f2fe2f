package draw

import (
	"sort"

	"github.com/MeKo-Tech/osmraster/internal/mapcss"
)

// FillContour paints the interior of a polygon outline into the figure using
// even-odd scanline filling. Edges are walked with Bresenham; the pixel rows
// of each edge's upper endpoint are poisoned so a vertex shared by two edges
// is not counted twice. Fill coverage is not anti-aliased.
func FillContour(figure *Figure, pairs []PointPair, color mapcss.Color, opacity float64) {
	yToEdges := make(edgesByY)
	for idx, pair := range pairs {
		rasterFillEdge(idx, pair.P1, pair.P2, yToEdges)
	}

	fillColor := RGBAFromColor(color, opacity)
	bbox := figure.BBox()

	for y := bbox.MinY; y <= bbox.MaxY; y++ {
		edges, ok := yToEdges[y]
		if !ok {
			continue
		}

		good := make([]*fillEdge, 0, len(edges))
		indexes := make([]int, 0, len(edges))
		for idx := range edges {
			indexes = append(indexes, idx)
		}
		sort.Ints(indexes)
		for _, idx := range indexes {
			if !edges[idx].isPoisoned {
				good = append(good, edges[idx])
			}
		}
		sort.SliceStable(good, func(i, j int) bool {
			return good[i].xMin < good[j].xMin
		})

		for i := 0; i+1 < len(good); i += 2 {
			fromX := good[i].xMin
			if fromX < bbox.MinX {
				fromX = bbox.MinX
			}
			toX := good[i+1].xMax
			if toX > bbox.MaxX {
				toX = bbox.MaxX
			}
			for x := fromX; x <= toX; x++ {
				figure.Add(x, y, fillColor)
			}
		}
	}
}

type fillEdge struct {
	xMin, xMax int
	isPoisoned bool
}

type edgesByY map[int]map[int]*fillEdge

// rasterFillEdge walks one polygon edge with a stripped-down Bresenham
// (http://members.chello.at/~easyfilter/bresenham.html) and records the
// x extent the edge covers on every scanline it touches.
func rasterFillEdge(edgeIdx int, p1, p2 Point, yToEdges edgesByY) {
	abs := func(v int) int {
		if v < 0 {
			return -v
		}
		return v
	}
	dir := func(c1, c2 int) int {
		if c1 < c2 {
			return 1
		}
		return -1
	}

	dx := abs(p2.X - p1.X)
	dy := -abs(p2.Y - p1.Y)
	sx := dir(p1.X, p2.X)
	sy := dir(p1.Y, p2.Y)

	err := dx + dy
	cur := p1

	for {
		isStart := cur == p1
		isEnd := cur == p2

		isPoisoned := false
		if isStart {
			isPoisoned = p1.Y <= p2.Y
		} else if isEnd {
			isPoisoned = p2.Y <= p1.Y
		}

		row, ok := yToEdges[cur.Y]
		if !ok {
			row = make(map[int]*fillEdge)
			yToEdges[cur.Y] = row
		}
		edge, ok := row[edgeIdx]
		if !ok {
			edge = &fillEdge{xMin: cur.X, xMax: cur.X, isPoisoned: isPoisoned}
			row[edgeIdx] = edge
		}
		if cur.X < edge.xMin {
			edge.xMin = cur.X
		}
		if cur.X > edge.xMax {
			edge.xMax = cur.X
		}
		edge.isPoisoned = edge.isPoisoned || isPoisoned

		if isEnd {
			break
		}

		e2 := 2 * err
		if e2 >= dy {
			err += dy
			cur.X += sx
		}
		if e2 <= dx {
			err += dx
			cur.Y += sy
		}
	}
}
