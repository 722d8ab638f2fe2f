package fontrast

import (
	"math"
	"unicode"

	"github.com/MeKo-Tech/osmraster/internal/draw"
	"github.com/MeKo-Tech/osmraster/internal/mapcss"
	"github.com/MeKo-Tech/osmraster/internal/tile"
)

// Labelable is anything a label can be attached to. Implementations bind
// the entity to a zoom level and render scale.
type Labelable interface {
	// Center returns the centroid in pixel coordinates.
	Center() (x, y float64, ok bool)
	// Waypoints returns the polyline to lay text along; ok is false for
	// entities without a usable line geometry.
	Waypoints() ([]draw.Point, bool)
}

// TextPlacer lays out glyph runs and rasterizes them into figures.
type TextPlacer struct {
	face Face
}

// NewTextPlacer wraps a font face.
func NewTextPlacer(face Face) *TextPlacer {
	return &TextPlacer{face: face}
}

// Place renders text attached to an entity into the figure. The scale
// multiplies the wrap width for centered labels; fontSize is already in
// device pixels. A positive yOffset anchors the first row below the center
// instead of vertically centering the block.
func (p *TextPlacer) Place(
	on Labelable,
	text string,
	position mapcss.TextPosition,
	fontSize float64,
	scale int,
	yOffset float64,
	color mapcss.Color,
	figure *draw.Figure,
) {
	glyphScale := p.face.ScaleForPixelHeight(fontSize)
	glyphs := p.textToGlyphs(text, glyphScale)
	if len(glyphs.glyphs) == 0 {
		return
	}

	rasterizer := NewRasterizer(color)
	vm := p.scaledVMetrics(glyphScale)

	switch position {
	case mapcss.TextLine:
		p.placeAlongLine(on, glyphs, vm, glyphScale, rasterizer)
	case mapcss.TextCenter:
		p.placeCentered(on, glyphs, vm, glyphScale, scale, yOffset, rasterizer)
	default:
		return
	}

	rasterizer.SaveToFigure(figure)
}

func (p *TextPlacer) placeAlongLine(on Labelable, glyphs glyphRun, vm VMetrics, glyphScale float64, rasterizer *Rasterizer) {
	waypoints, ok := on.Waypoints()
	if !ok || len(waypoints) < 2 {
		return
	}

	points := append([]draw.Point(nil), waypoints...)
	// Keep left-to-right reading.
	if points[0].X > points[len(points)-1].X {
		for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
			points[i], points[j] = points[j], points[i]
		}
	}

	totalWayLength := 0.0
	for i := 1; i < len(points); i++ {
		totalWayLength += points[i-1].Dist(points[i])
	}
	if glyphs.totalWidth > totalWayLength {
		return
	}

	curDist := (totalWayLength - glyphs.totalWidth) / 2
	glyphCenterY := (vm.Ascent + vm.Descent) / 2

	for i := range glyphs.glyphs {
		glyph := &glyphs.glyphs[i]
		glyphCenterX := glyph.width / 2
		wayPos := computeWayPosition(points, curDist+glyphCenterX)

		sin, cos := math.Sincos(-wayPos.angle)
		tr := func(x, y float64) (float64, float64) {
			translatedX := x - glyphCenterX
			translatedY := y - glyphCenterY

			rotatedX := translatedX*cos - translatedY*sin
			rotatedY := translatedY*cos + translatedX*sin

			return wayPos.x + rotatedX, wayPos.y - rotatedY
		}

		glyph.rasterize(rasterizer, glyphScale, tr)
		curDist += glyph.width
	}
}

func (p *TextPlacer) placeCentered(on Labelable, glyphs glyphRun, vm VMetrics, glyphScale float64, scale int, yOffset float64, rasterizer *Rasterizer) {
	centerX, centerY, ok := on.Center()
	if !ok {
		return
	}

	maxTextWidth := float64(tile.Size*scale) / 8

	type row struct {
		glyphs []*glyph
		width  float64
	}
	var rows []row
	var currentRow []*glyph
	currentRowWidth := 0.0

	for i := range glyphs.glyphs {
		g := &glyphs.glyphs[i]
		currentRow = append(currentRow, g)
		currentRowWidth += g.width

		isLastGlyph := i+1 == len(glyphs.glyphs)
		shouldBreak := unicode.IsSpace(g.ch) && currentRowWidth+g.width > maxTextWidth
		if len(currentRow) > 0 && (shouldBreak || isLastGlyph) {
			rows = append(rows, row{glyphs: currentRow, width: currentRowWidth})
			currentRow = nil
			currentRowWidth = 0
		}
	}

	rowHeight := vm.Ascent - vm.Descent + vm.LineGap
	totalHeight := rowHeight * float64(len(rows))

	curY := centerY
	if yOffset > 0 {
		curY += yOffset
	} else {
		curY -= totalHeight / 2
	}

	for _, r := range rows {
		curX := centerX - r.width/2
		for _, g := range r.glyphs {
			baseline := curY + vm.Ascent
			xOffset := curX
			tr := func(x, y float64) (float64, float64) {
				return xOffset + x, baseline - y
			}
			g.rasterize(rasterizer, glyphScale, tr)
			curX += g.width
		}
		curY += rowHeight
	}
}

type glyph struct {
	ch    rune
	width float64
	shape []Vertex
}

type glyphRun struct {
	glyphs     []glyph
	totalWidth float64
}

func (p *TextPlacer) textToGlyphs(text string, glyphScale float64) glyphRun {
	var run glyphRun
	havePrev := false
	var prevID GlyphID

	for _, ch := range text {
		id := p.face.GlyphIndex(ch)

		g := glyph{
			ch:    ch,
			width: p.face.AdvanceWidth(id) * glyphScale,
			shape: p.face.GlyphShape(id),
		}

		if havePrev {
			g.width += p.face.KernAdvance(prevID, id) * glyphScale
		}

		run.totalWidth += g.width
		run.glyphs = append(run.glyphs, g)
		prevID = id
		havePrev = true
	}
	return run
}

// rasterize feeds the glyph outline through tr into the rasterizer.
// tr receives glyph-space coordinates already multiplied by glyphScale,
// y axis up, and returns figure pixel coordinates.
func (g *glyph) rasterize(rasterizer *Rasterizer, glyphScale float64, tr func(x, y float64) (float64, float64)) {
	fromX, fromY := 0.0, 0.0
	for _, v := range g.shape {
		toX, toY := v.X*glyphScale, v.Y*glyphScale
		switch v.Op {
		case OpMoveTo:
		case OpLineTo:
			p1x, p1y := tr(fromX, fromY)
			p0x, p0y := tr(toX, toY)
			rasterizer.DrawLine(p0x, p0y, p1x, p1y)
		case OpQuadTo:
			cx, cy := v.CX*glyphScale, v.CY*glyphScale
			p2x, p2y := tr(fromX, fromY)
			p1x, p1y := tr(cx, cy)
			p0x, p0y := tr(toX, toY)
			rasterizer.DrawQuad(p0x, p0y, p1x, p1y, p2x, p2y)
		}
		fromX, fromY = toX, toY
	}
}

func (p *TextPlacer) scaledVMetrics(glyphScale float64) VMetrics {
	vm := p.face.VMetrics()
	return VMetrics{
		Ascent:  vm.Ascent * glyphScale,
		Descent: vm.Descent * glyphScale,
		LineGap: vm.LineGap * glyphScale,
	}
}

type wayPosition struct {
	x, y  float64
	angle float64
}

func computeWayPosition(points []draw.Point, advanceBy float64) wayPosition {
	angleAt := func(startIdx int) float64 {
		from, to := points[startIdx], points[startIdx+1]
		return math.Atan2(float64(to.Y-from.Y), float64(to.X-from.X))
	}

	toTravel := advanceBy
	for idx := 0; toTravel > 0 && idx+1 < len(points); idx++ {
		from, to := points[idx], points[idx+1]
		segDist := from.Dist(to)
		if segDist >= toTravel {
			ratio := toTravel / segDist
			return wayPosition{
				x:     float64(from.X) + float64(to.X-from.X)*ratio,
				y:     float64(from.Y) + float64(to.Y-from.Y)*ratio,
				angle: angleAt(idx),
			}
		}
		toTravel -= segDist
	}

	last := points[len(points)-1]
	return wayPosition{
		x:     float64(last.X),
		y:     float64(last.Y),
		angle: angleAt(len(points) - 2),
	}
}
