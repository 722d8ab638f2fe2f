package fontrast

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// SFNTFace adapts a TrueType/OpenType font to the Face interface. The
// underlying sfnt buffers are not concurrency-safe, so every call takes the
// face's lock; rendering holds a face per text placer, which is shared
// between workers.
type SFNTFace struct {
	mu   sync.Mutex
	font *sfnt.Font
	buf  sfnt.Buffer

	// ppem equal to the em size keeps every sfnt result in font units.
	unitsPerEm fixed.Int26_6
	metrics    VMetrics
}

// ParseFont parses a font blob.
func ParseFont(data []byte) (*SFNTFace, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	face := &SFNTFace{
		font:       f,
		unitsPerEm: fixed.I(int(f.UnitsPerEm())),
	}

	m, err := f.Metrics(&face.buf, face.unitsPerEm, font.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("failed to read font metrics: %w", err)
	}
	face.metrics = VMetrics{
		Ascent:  fixedToFloat(m.Ascent),
		Descent: -fixedToFloat(m.Descent),
		LineGap: fixedToFloat(m.Height - m.Ascent - m.Descent),
	}

	return face, nil
}

// ScaleForPixelHeight implements Face.
func (f *SFNTFace) ScaleForPixelHeight(pixels float64) float64 {
	return pixels / (f.metrics.Ascent - f.metrics.Descent)
}

// GlyphIndex implements Face.
func (f *SFNTFace) GlyphIndex(r rune) GlyphID {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, err := f.font.GlyphIndex(&f.buf, r)
	if err != nil {
		return 0
	}
	return GlyphID(idx)
}

// AdvanceWidth implements Face.
func (f *SFNTFace) AdvanceWidth(g GlyphID) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	adv, err := f.font.GlyphAdvance(&f.buf, sfnt.GlyphIndex(g), f.unitsPerEm, font.HintingNone)
	if err != nil {
		return 0
	}
	return fixedToFloat(adv)
}

// KernAdvance implements Face.
func (f *SFNTFace) KernAdvance(prev, g GlyphID) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	kern, err := f.font.Kern(&f.buf, sfnt.GlyphIndex(prev), sfnt.GlyphIndex(g), f.unitsPerEm, font.HintingNone)
	if err != nil {
		return 0
	}
	return fixedToFloat(kern)
}

// GlyphShape implements Face. Cubic segments (CFF outlines) are approximated
// with a single quadratic, which is visually adequate at map label sizes.
func (f *SFNTFace) GlyphShape(g GlyphID) []Vertex {
	f.mu.Lock()
	defer f.mu.Unlock()
	segments, err := f.font.LoadGlyph(&f.buf, sfnt.GlyphIndex(g), f.unitsPerEm, nil)
	if err != nil {
		return nil
	}

	// sfnt reports y down; the Face contract is y up.
	pt := func(p fixed.Point26_6) (float64, float64) {
		return fixedToFloat(p.X), -fixedToFloat(p.Y)
	}

	var vertices []Vertex
	var curX, curY float64
	for _, seg := range segments {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			x, y := pt(seg.Args[0])
			vertices = append(vertices, Vertex{Op: OpMoveTo, X: x, Y: y})
			curX, curY = x, y
		case sfnt.SegmentOpLineTo:
			x, y := pt(seg.Args[0])
			vertices = append(vertices, Vertex{Op: OpLineTo, X: x, Y: y})
			curX, curY = x, y
		case sfnt.SegmentOpQuadTo:
			cx, cy := pt(seg.Args[0])
			x, y := pt(seg.Args[1])
			vertices = append(vertices, Vertex{Op: OpQuadTo, X: x, Y: y, CX: cx, CY: cy})
			curX, curY = x, y
		case sfnt.SegmentOpCubeTo:
			c1x, c1y := pt(seg.Args[0])
			c2x, c2y := pt(seg.Args[1])
			x, y := pt(seg.Args[2])
			vertices = append(vertices, Vertex{
				Op: OpQuadTo,
				X:  x, Y: y,
				CX: (3*(c1x+c2x) - curX - x) / 4,
				CY: (3*(c1y+c2y) - curY - y) / 4,
			})
			curX, curY = x, y
		}
	}
	return vertices
}

// VMetrics implements Face.
func (f *SFNTFace) VMetrics() VMetrics { return f.metrics }

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
