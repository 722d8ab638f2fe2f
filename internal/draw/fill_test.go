package draw

import (
	"testing"

	"github.com/MeKo-Tech/osmraster/internal/mapcss"
)

func squarePairs(x0, y0, x1, y1 int) []PointPair {
	// Clockwise in screen coordinates.
	return []PointPair{
		{P1: Point{X: x0, Y: y0}, P2: Point{X: x1, Y: y0}},
		{P1: Point{X: x1, Y: y0}, P2: Point{X: x1, Y: y1}},
		{P1: Point{X: x1, Y: y1}, P2: Point{X: x0, Y: y1}},
		{P1: Point{X: x0, Y: y1}, P2: Point{X: x0, Y: y0}},
	}
}

func reversedPairs(pairs []PointPair) []PointPair {
	out := make([]PointPair, 0, len(pairs))
	for i := len(pairs) - 1; i >= 0; i-- {
		out = append(out, PointPair{P1: pairs[i].P2, P2: pairs[i].P1})
	}
	return out
}

func TestFillSquare(t *testing.T) {
	figure := testFigure()
	red := mapcss.Color{R: 255}

	FillContour(figure, squarePairs(10, 10, 110, 110), red, 1)

	// Edge poisoning drops the row of each edge's upper endpoint, so the
	// topmost row of the square is contributed by no edge pair.
	for y := 11; y <= 110; y++ {
		for x := 10; x <= 110; x++ {
			c, ok := figure.Get(x, y)
			if !ok {
				t.Fatalf("missing fill pixel at (%d, %d)", x, y)
			}
			if c.A != 1 || c.R != 1 || c.G != 0 || c.B != 0 {
				t.Fatalf("wrong fill color at (%d, %d): %+v", x, y, c)
			}
		}
	}

	// Nothing outside the square.
	for x := 9; x <= 111; x++ {
		if _, ok := figure.Get(x, 9); ok {
			t.Fatalf("unexpected pixel above the square at x=%d", x)
		}
		if _, ok := figure.Get(x, 111); ok {
			t.Fatalf("unexpected pixel below the square at x=%d", x)
		}
	}
	for y := 9; y <= 111; y++ {
		if _, ok := figure.Get(9, y); ok {
			t.Fatalf("unexpected pixel left of the square at y=%d", y)
		}
		if _, ok := figure.Get(111, y); ok {
			t.Fatalf("unexpected pixel right of the square at y=%d", y)
		}
	}

	if got, want := figure.PixelCount(), 101*100; got != want {
		t.Errorf("filled pixel count = %d, want %d", got, want)
	}
}

func TestFillDoughnut(t *testing.T) {
	figure := testFigure()
	red := mapcss.Color{R: 255}

	pairs := squarePairs(10, 10, 110, 110)
	// Inner ring wound the other way; even-odd filling leaves its interior
	// empty either way.
	pairs = append(pairs, reversedPairs(squarePairs(40, 40, 80, 80))...)

	FillContour(figure, pairs, red, 1)

	// The hole: strictly inside the inner square nothing is painted.
	for y := 41; y <= 79; y++ {
		for x := 41; x <= 79; x++ {
			if _, ok := figure.Get(x, y); ok {
				t.Fatalf("unexpected pixel inside the hole at (%d, %d)", x, y)
			}
		}
	}

	// The ring between the squares is painted.
	ringProbes := []Point{
		{X: 25, Y: 60}, {X: 95, Y: 60}, {X: 60, Y: 25}, {X: 60, Y: 95},
		{X: 10, Y: 60}, {X: 110, Y: 60},
	}
	for _, p := range ringProbes {
		if _, ok := figure.Get(p.X, p.Y); !ok {
			t.Errorf("missing ring pixel at (%d, %d)", p.X, p.Y)
		}
	}
}

func TestFillRespectsFigureBBox(t *testing.T) {
	figure := testFigure()
	bbox := figure.BBox()

	// A polygon sticking far out of the figure's clip region.
	FillContour(figure, squarePairs(bbox.MinX-500, 100, bbox.MaxX+500, 200), mapcss.Color{G: 255}, 1)

	for _, row := range []int{150, 199} {
		if _, ok := figure.Get(bbox.MinX, row); !ok {
			t.Errorf("expected clipped fill at the bbox edge, row %d", row)
		}
	}
	if figure.PixelCount() == 0 {
		t.Fatal("nothing was drawn")
	}
}

func TestFillOpacity(t *testing.T) {
	figure := testFigure()

	FillContour(figure, squarePairs(0, 0, 20, 20), mapcss.Color{B: 255}, 0.5)

	c, ok := figure.Get(10, 10)
	if !ok {
		t.Fatal("missing fill pixel")
	}
	if c.A != 0.5 {
		t.Errorf("fill alpha = %v, want 0.5", c.A)
	}
	if c.B != 0.5 {
		t.Errorf("premultiplied blue = %v, want 0.5", c.B)
	}
}
