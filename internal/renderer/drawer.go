package renderer

import (
	"log/slog"

	"github.com/MeKo-Tech/osmraster/internal/draw"
	"github.com/MeKo-Tech/osmraster/internal/draw/fontrast"
	"github.com/MeKo-Tech/osmraster/internal/geodata"
	"github.com/MeKo-Tech/osmraster/internal/mapcss"
	"github.com/MeKo-Tech/osmraster/internal/tile"
)

// Drawer renders tiles: it pulls styled entities through the fill, casing,
// line and label passes and composites them into a pixel buffer.
// It is safe for concurrent use by multiple workers.
type Drawer struct {
	labeler *Labeler
	logger  *slog.Logger
}

// NewDrawer creates a drawer. iconBasePath is the directory icon-image
// paths resolve against; face may be nil to disable text rendering.
func NewDrawer(iconBasePath string, face fontrast.Face, logger *slog.Logger) *Drawer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Drawer{
		labeler: NewLabeler(iconBasePath, face, logger),
		logger:  logger,
	}
}

type renderPass int

const (
	passFill renderPass = iota
	passCasing
	passLine
)

// DrawTile renders one tile and encodes it as a PNG.
func (d *Drawer) DrawTile(entities geodata.OsmEntities, t tile.Tile, scale int, styler *mapcss.Styler) ([]byte, error) {
	pixels := d.DrawToPixels(entities, t, scale, styler)
	dimension := tile.Size * scale
	return draw.RGBTriplesToPNG(pixels, dimension, dimension)
}

// DrawToPixels renders one tile into finalized RGB triples.
func (d *Drawer) DrawToPixels(entities geodata.OsmEntities, t tile.Tile, scale int, styler *mapcss.Styler) draw.RGBTriples {
	pixels := draw.NewTilePixels(scale)
	if c := styler.CanvasFillColor; c != nil {
		pixels.Fill(draw.RGBAFromColor(*c, 1))
	}

	styledAreas := styler.StyleAreas(entities.Ways, entities.Multipolygons, t.Zoom)

	for _, pass := range []renderPass{passFill, passCasing, passLine} {
		for _, styled := range styledAreas {
			d.drawArea(pixels, styled, pass, t, scale, styler)
		}
	}

	nodeTargets := make([]mapcss.StyleTarget, len(entities.Nodes))
	for i, n := range entities.Nodes {
		nodeTargets[i] = mapcss.NodeTarget{Node: n}
	}
	styledNodes := styler.StyleEntities(nodeTargets, t.Zoom)

	d.drawLabels(pixels, mapcss.MergeStyled(styledAreas, styledNodes), t, scale)

	return pixels.ToRGBTriples()
}

func (d *Drawer) drawArea(pixels *draw.TilePixels, styled mapcss.StyledTarget, pass renderPass, t tile.Tile, scale int, styler *mapcss.Styler) {
	style := styled.Style

	var needed bool
	switch pass {
	case passFill:
		needed = style.FillColor != nil
	case passCasing:
		needed = style.CasingColor != nil && style.CasingWidth != nil
	case passLine:
		needed = style.Color != nil
	}
	if !needed {
		return
	}

	pairs := areaPointPairs(styled.Target, t.Zoom, scale)
	if len(pairs) == 0 {
		return
	}

	figure := draw.NewFigure(t, scale)

	switch pass {
	case passFill:
		draw.FillContour(figure, pairs, *style.FillColor, floatOrOne(style.FillOpacity))
	case passCasing:
		draw.DrawLines(figure, pairs,
			*style.CasingWidth*float64(scale), *style.CasingColor, floatOrOne(style.Opacity),
			scaleDashes(style.CasingDashes, scale), effectiveCap(style.CasingLineCap, styler))
	case passLine:
		width := floatOrOne(style.Width)
		draw.DrawLines(figure, pairs,
			width*float64(scale), *style.Color, floatOrOne(style.Opacity),
			scaleDashes(style.Dashes, scale), effectiveCap(style.LineCap, styler))
	}

	figure.CompositeInto(pixels, t, scale)
}

// drawLabels places icons and text, rejecting labels whose pixel rows
// collide with labels committed earlier in the styled order.
func (d *Drawer) drawLabels(pixels *draw.TilePixels, styled []mapcss.StyledTarget, t tile.Tile, scale int) {
	committed := draw.NewFigure(t, scale)

	for _, st := range styled {
		if st.Style.IconImage == "" && st.Style.TextStyle == nil {
			continue
		}

		labelFigure := committed.CleanCopy()
		d.labeler.LabelEntity(labelFigure, st, t.Zoom, scale)
		if labelFigure.IsEmpty() {
			continue
		}

		if committed.UpdateFrom(labelFigure) {
			labelFigure.CompositeInto(pixels, t, scale)
		}
	}
}

// effectiveCap suppresses caps for stylesheets that draw dashes as plain
// rectangles.
func effectiveCap(cap *mapcss.LineCap, styler *mapcss.Styler) *mapcss.LineCap {
	if !styler.UseCapsForDashes {
		return nil
	}
	return cap
}

func scaleDashes(dashes []float64, scale int) []float64 {
	if scale == 1 || len(dashes) == 0 {
		return dashes
	}
	scaled := make([]float64, len(dashes))
	for i, d := range dashes {
		scaled[i] = d * float64(scale)
	}
	return scaled
}

func floatOrOne(v *float64) float64 {
	if v == nil {
		return 1
	}
	return *v
}
