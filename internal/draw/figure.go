package draw

import "github.com/MeKo-Tech/osmraster/internal/tile"

// BoundingBox is an inclusive pixel rectangle.
type BoundingBox struct {
	MinX, MaxX int
	MinY, MaxY int
}

// Figure is a sparse per-entity pixel layer. Its bounding box spans the
// rendered tile plus one tile of bleed in every direction, so geometry
// crossing tile edges rasterizes identically on both sides of the edge.
type Figure struct {
	pixels map[int]map[int]RGBA
	bbox   BoundingBox
}

// NewFigure creates an empty figure clipped to the 3x3-tile neighborhood of
// t at the given render scale.
func NewFigure(t tile.Tile, scale int) *Figure {
	tileSize := tile.Size * scale
	startX := int(t.X) * tileSize
	startY := int(t.Y) * tileSize

	return &Figure{
		pixels: make(map[int]map[int]RGBA),
		bbox: BoundingBox{
			MinX: startX - tileSize,
			MaxX: startX + 2*tileSize - 1,
			MinY: startY - tileSize,
			MaxY: startY + 2*tileSize - 1,
		},
	}
}

// CleanCopy returns an empty figure with the same bounding box.
func (f *Figure) CleanCopy() *Figure {
	return &Figure{
		pixels: make(map[int]map[int]RGBA),
		bbox:   f.bbox,
	}
}

// BBox returns the clipping bounding box.
func (f *Figure) BBox() BoundingBox { return f.bbox }

// IsEmpty reports whether no pixel has been added.
func (f *Figure) IsEmpty() bool { return len(f.pixels) == 0 }

// Get returns the pixel at (x, y), if present.
func (f *Figure) Get(x, y int) (RGBA, bool) {
	c, ok := f.pixels[y][x]
	return c, ok
}

// PixelCount returns the number of stored pixels.
func (f *Figure) PixelCount() int {
	count := 0
	for _, row := range f.pixels {
		count += len(row)
	}
	return count
}

// Add inserts a pixel. Positions outside the bounding box are dropped; when
// the pixel exists the more opaque color wins.
func (f *Figure) Add(x, y int, c RGBA) {
	if x < f.bbox.MinX || x > f.bbox.MaxX || y < f.bbox.MinY || y > f.bbox.MaxY {
		return
	}

	row, ok := f.pixels[y]
	if !ok {
		row = make(map[int]RGBA)
		f.pixels[y] = row
	}
	if old, ok := row[x]; !ok || c.A > old.A {
		row[x] = c
	}
}

// UpdateFrom overlays other onto f unless, on some row, f already holds a
// pixel inside the x-range spanned by other's row. It reports whether the
// overlay was applied; a false return leaves f untouched. The labeler uses
// this to reject a label whose footprint collides with committed labels.
func (f *Figure) UpdateFrom(other *Figure) bool {
	for y, otherRow := range other.pixels {
		if len(otherRow) == 0 {
			continue
		}
		row, ok := f.pixels[y]
		if !ok {
			continue
		}

		minX, maxX := rowRange(otherRow)
		for x := range row {
			if x >= minX && x <= maxX {
				return false
			}
		}
	}

	for y, otherRow := range other.pixels {
		for x, c := range otherRow {
			f.Add(x, y, c)
		}
	}
	return true
}

// CompositeInto blends the pixels that fall inside t's own square into the
// tile buffer, translating to tile-local coordinates.
func (f *Figure) CompositeInto(pixels *TilePixels, t tile.Tile, scale int) {
	tileSize := tile.Size * scale
	startX := int(t.X) * tileSize
	startY := int(t.Y) * tileSize

	for y := startY; y < startY+tileSize; y++ {
		row, ok := f.pixels[y]
		if !ok {
			continue
		}
		for x, c := range row {
			if x >= startX && x < startX+tileSize {
				pixels.SetPixel(x-startX, y-startY, c)
			}
		}
	}
}

func rowRange(row map[int]RGBA) (minX, maxX int) {
	first := true
	for x := range row {
		if first {
			minX, maxX = x, x
			first = false
			continue
		}
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
	}
	return minX, maxX
}
