package draw

import (
	"testing"

	"github.com/MeKo-Tech/osmraster/internal/tile"
)

func TestFigureBBoxSpansNeighborhood(t *testing.T) {
	f := NewFigure(tile.Tile{Zoom: 10, X: 3, Y: 5}, 1)
	want := BoundingBox{
		MinX: 2 * 256, MaxX: 5*256 - 1,
		MinY: 4 * 256, MaxY: 7*256 - 1,
	}
	if f.BBox() != want {
		t.Errorf("bbox = %+v, want %+v", f.BBox(), want)
	}

	scaled := NewFigure(tile.Tile{Zoom: 10, X: 3, Y: 5}, 2)
	if got := scaled.BBox(); got.MinX != 2*512 || got.MaxX != 5*512-1 {
		t.Errorf("scaled bbox = %+v", got)
	}
}

func TestFigureAddClipsAndKeepsMaxAlpha(t *testing.T) {
	f := NewFigure(tile.Tile{Zoom: 0, X: 0, Y: 0}, 1)

	f.Add(10000, 10, RGBA{A: 1})
	if !f.IsEmpty() {
		t.Error("out-of-bbox add should be a no-op")
	}

	f.Add(10, 10, RGBA{R: 0.3, A: 0.3})
	f.Add(10, 10, RGBA{R: 0.9, A: 0.9})
	if c, _ := f.Get(10, 10); c.A != 0.9 {
		t.Errorf("higher alpha should win, got %+v", c)
	}

	// A weaker write does not displace the stored pixel.
	f.Add(10, 10, RGBA{R: 0.1, A: 0.1})
	if c, _ := f.Get(10, 10); c.A != 0.9 {
		t.Errorf("lower alpha should lose, got %+v", c)
	}
}

func TestFigureUpdateFromRejectsRowOverlap(t *testing.T) {
	base := NewFigure(tile.Tile{Zoom: 0, X: 0, Y: 0}, 1)
	base.Add(10, 10, RGBA{A: 1})
	base.Add(20, 10, RGBA{A: 1})

	// Same row, x-range [5, 15] contains the committed pixel at 10: rejected.
	overlapping := base.CleanCopy()
	overlapping.Add(5, 10, RGBA{A: 1})
	overlapping.Add(15, 10, RGBA{A: 1})
	if base.UpdateFrom(overlapping) {
		t.Error("overlapping label was accepted")
	}
	if _, ok := base.Get(15, 10); ok {
		t.Error("rejected overlay must not modify the base")
	}

	// Same row, disjoint x-range: accepted.
	disjoint := base.CleanCopy()
	disjoint.Add(30, 10, RGBA{A: 1})
	if !base.UpdateFrom(disjoint) {
		t.Error("disjoint label was rejected")
	}
	if _, ok := base.Get(30, 10); !ok {
		t.Error("accepted overlay must be merged")
	}

	// Different row entirely: accepted.
	otherRow := base.CleanCopy()
	otherRow.Add(15, 11, RGBA{A: 1})
	if !base.UpdateFrom(otherRow) {
		t.Error("label on a free row was rejected")
	}
}

func TestFigureCompositeInto(t *testing.T) {
	target := tile.Tile{Zoom: 3, X: 2, Y: 1}
	f := NewFigure(target, 1)

	inside := RGBA{R: 1, A: 1}
	f.Add(2*256+5, 1*256+7, inside)
	// In the bleed area: rasterized but not composited.
	f.Add(2*256-1, 1*256+7, RGBA{G: 1, A: 1})

	pixels := NewTilePixels(1)
	f.CompositeInto(pixels, target, 1)

	triples := pixels.ToRGBTriples()
	if got := triples[7*256+5]; got != [3]uint8{255, 0, 0} {
		t.Errorf("composited pixel = %v", got)
	}

	// The bleed pixel must not appear anywhere; every other pixel stays at
	// the initial opaque black.
	count := 0
	for _, tr := range triples {
		if tr != [3]uint8{0, 0, 0} {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one non-black pixel, got %d", count)
	}
}
