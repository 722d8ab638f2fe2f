package renderer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/osmraster/internal/draw"
	"github.com/MeKo-Tech/osmraster/internal/draw/fontrast"
	"github.com/MeKo-Tech/osmraster/internal/geodata"
	"github.com/MeKo-Tech/osmraster/internal/mapcss"
	"github.com/MeKo-Tech/osmraster/internal/tile"
)

// fixture bundles a tiny rendered world: one closed square way around the
// center of a known tile.
type fixture struct {
	reader *geodata.Reader
	tile   tile.Tile
}

func newFixture(t *testing.T, tags map[string]string) fixture {
	t.Helper()

	// A ~0.001 degree square near the equator, well inside one z16 tile.
	const lat, lon = 0.0005, 0.0005
	d := &geodata.Dataset{
		Nodes: []geodata.RawNode{
			{GlobalID: 1, Lat: lat - 0.0004, Lon: lon - 0.0004},
			{GlobalID: 2, Lat: lat - 0.0004, Lon: lon + 0.0004},
			{GlobalID: 3, Lat: lat + 0.0004, Lon: lon + 0.0004},
			{GlobalID: 4, Lat: lat + 0.0004, Lon: lon - 0.0004},
		},
		Ways: []geodata.RawWay{
			{GlobalID: 10, NodeIDs: []uint32{0, 1, 2, 3, 0}, Tags: tags},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, geodata.Write(&buf, d))
	path := filepath.Join(t.TempDir(), "fixture.bin")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	reader, err := geodata.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })

	mz := tile.CoordsToMaxZoomTile(lat, lon)
	return fixture{
		reader: reader,
		tile:   tile.Tile{Zoom: 16, X: mz.X >> 2, Y: mz.Y >> 2},
	}
}

func buildingRules(t *testing.T) []mapcss.Rule {
	t.Helper()
	return []mapcss.Rule{
		{
			Selectors: []mapcss.Selector{{ObjectType: mapcss.ObjectCanvas}},
			Properties: []mapcss.Property{
				{Name: "fill-color", Value: mustColor(t, "#111213")},
			},
		},
		{
			Selectors: []mapcss.Selector{{
				ObjectType: mapcss.ObjectArea,
				Tests:      []mapcss.Test{mapcss.UnaryTest{Tag: "building", Type: mapcss.TestTrue}},
			}},
			Properties: []mapcss.Property{
				{Name: "fill-color", Value: mapcss.Color{R: 255}},
				{Name: "color", Value: mustColor(t, "#330066")},
				{Name: "width", Value: mapcss.Numbers{1}},
			},
		},
	}
}

func mustColor(t *testing.T, s string) mapcss.Color {
	t.Helper()
	c, err := mapcss.ParseHexColor(s)
	require.NoError(t, err)
	return c
}

func countColor(triples draw.RGBTriples, want [3]uint8) int {
	n := 0
	for _, tr := range triples {
		if tr == want {
			n++
		}
	}
	return n
}

func TestDrawTileFillsClosedWay(t *testing.T) {
	fx := newFixture(t, map[string]string{"building": "yes"})
	styler := mapcss.NewStyler(buildingRules(t), mapcss.StyleJosm, 0, nil)
	drawer := NewDrawer(t.TempDir(), nil, nil)

	entities := fx.reader.GetEntitiesInTileWithNeighbors(fx.tile, nil)
	require.Len(t, entities.Ways, 1)

	triples := drawer.DrawToPixels(entities, fx.tile, 1, styler)
	require.Len(t, triples, 256*256)

	// The square's interior is filled red; the rest keeps the canvas color.
	redCount := countColor(triples, [3]uint8{255, 0, 0})
	require.Greater(t, redCount, 100, "expected a filled building interior")

	canvasCount := countColor(triples, [3]uint8{0x11, 0x12, 0x13})
	require.Greater(t, canvasCount, 256*256/2, "expected canvas background to dominate")
}

func TestDrawTileDeterministic(t *testing.T) {
	fx := newFixture(t, map[string]string{"building": "yes"})
	styler := mapcss.NewStyler(buildingRules(t), mapcss.StyleJosm, 0, nil)
	drawer := NewDrawer(t.TempDir(), nil, nil)

	entities := fx.reader.GetEntitiesInTileWithNeighbors(fx.tile, nil)

	first, err := drawer.DrawTile(entities, fx.tile, 1, styler)
	require.NoError(t, err)
	second, err := drawer.DrawTile(entities, fx.tile, 1, styler)
	require.NoError(t, err)

	require.Equal(t, first, second, "two renders of the same tile must be byte-identical")
}

func TestDrawTileScale(t *testing.T) {
	fx := newFixture(t, map[string]string{"building": "yes"})
	styler := mapcss.NewStyler(buildingRules(t), mapcss.StyleJosm, 0, nil)
	drawer := NewDrawer(t.TempDir(), nil, nil)

	entities := fx.reader.GetEntitiesInTileWithNeighbors(fx.tile, nil)
	triples := drawer.DrawToPixels(entities, fx.tile, 2, styler)
	require.Len(t, triples, 512*512)

	// Roughly 4x the filled area of the 1x render.
	small := drawer.DrawToPixels(entities, fx.tile, 1, styler)
	smallRed := countColor(small, [3]uint8{255, 0, 0})
	bigRed := countColor(triples, [3]uint8{255, 0, 0})
	require.Greater(t, bigRed, 3*smallRed)
}

func TestDrawTileCasingUnderLine(t *testing.T) {
	fx := newFixture(t, map[string]string{"highway": "residential"})

	rules := []mapcss.Rule{{
		Selectors: []mapcss.Selector{{
			ObjectType: mapcss.ObjectWay,
			Tests:      []mapcss.Test{mapcss.StringTest{Tag: "highway", Type: mapcss.TestEqual, Value: "residential"}},
		}},
		Properties: []mapcss.Property{
			{Name: "color", Value: mapcss.Color{R: 255, G: 255, B: 255}},
			{Name: "width", Value: mapcss.Numbers{4}},
			{Name: "casing-width", Value: mapcss.Numbers{2}},
			{Name: "casing-color", Value: mapcss.Color{R: 128, G: 128, B: 128}},
		},
	}}

	styler := mapcss.NewStyler(rules, mapcss.StyleJosm, 0, nil)
	drawer := NewDrawer(t.TempDir(), nil, nil)
	entities := fx.reader.GetEntitiesInTileWithNeighbors(fx.tile, nil)

	triples := drawer.DrawToPixels(entities, fx.tile, 1, styler)

	// The white line body covers the casing center; the grey casing edge
	// survives alongside it.
	require.Greater(t, countColor(triples, [3]uint8{255, 255, 255}), 0, "line body missing")
	require.Greater(t, countColor(triples, [3]uint8{128, 128, 128}), 0, "casing edge missing")
}

func TestLabelCollisionKeepsFirst(t *testing.T) {
	// Two nodes at nearly the same position, both labeled.
	d := &geodata.Dataset{
		Nodes: []geodata.RawNode{
			{GlobalID: 1, Lat: 0.0005, Lon: 0.0005, Tags: map[string]string{"name": "AA"}},
			{GlobalID: 2, Lat: 0.00051, Lon: 0.00051, Tags: map[string]string{"name": "BB"}},
			{GlobalID: 3, Lat: 0.0005, Lon: 0.00045, Tags: map[string]string{"name": "CC"}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, geodata.Write(&buf, d))
	path := filepath.Join(t.TempDir(), "labels.bin")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	reader, err := geodata.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })

	mz := tile.CoordsToMaxZoomTile(0.0005, 0.0005)
	target := tile.Tile{Zoom: 16, X: mz.X >> 2, Y: mz.Y >> 2}

	rules := []mapcss.Rule{{
		Selectors: []mapcss.Selector{{ObjectType: mapcss.ObjectNode,
			Tests: []mapcss.Test{mapcss.UnaryTest{Tag: "name", Type: mapcss.TestExists}}}},
		Properties: []mapcss.Property{
			{Name: "text", Value: mapcss.Identifier("name")},
			{Name: "text-color", Value: mapcss.Color{G: 255}},
			{Name: "font-size", Value: mapcss.Numbers{10}},
		},
	}}

	styler := mapcss.NewStyler(rules, mapcss.StyleJosm, 0, nil)
	drawer := NewDrawer(t.TempDir(), collisionStubFace{}, nil)

	entities := reader.GetEntitiesInTileWithNeighbors(target, nil)
	require.Len(t, entities.Nodes, 3)

	triples := drawer.DrawToPixels(entities, target, 1, styler)

	// All three labels overlap around the shared position; exactly one
	// survives collision rejection, so some green text is drawn but far
	// less than three labels' worth.
	green := countColor(triples, [3]uint8{0, 255, 0})
	require.Greater(t, green, 0, "at least one label must be committed")

	// The committed label belongs to the lowest global ID; rendering that
	// node alone must produce the same footprint.
	var winner geodata.Node
	found := false
	for _, n := range entities.Nodes {
		if n.GlobalID() == 1 {
			winner, found = n, true
		}
	}
	require.True(t, found)

	single := drawer.DrawToPixels(geodata.OsmEntities{Nodes: []geodata.Node{winner}}, target, 1, styler)
	require.Equal(t, countColor(single, [3]uint8{0, 255, 0}), green,
		"colliding labels must not add pixels beyond the first label")
}

// collisionStubFace renders every glyph as a solid 6x6 square.
type collisionStubFace struct{}

func (collisionStubFace) ScaleForPixelHeight(px float64) float64 { return px / 10 }
func (collisionStubFace) GlyphIndex(r rune) fontrast.GlyphID     { return fontrast.GlyphID(r) }
func (collisionStubFace) AdvanceWidth(fontrast.GlyphID) float64  { return 8 }
func (collisionStubFace) KernAdvance(a, b fontrast.GlyphID) float64 {
	return 0
}

func (collisionStubFace) GlyphShape(fontrast.GlyphID) []fontrast.Vertex {
	return []fontrast.Vertex{
		{Op: fontrast.OpMoveTo, X: 0, Y: 0},
		{Op: fontrast.OpLineTo, X: 6, Y: 0},
		{Op: fontrast.OpLineTo, X: 6, Y: 6},
		{Op: fontrast.OpLineTo, X: 0, Y: 6},
		{Op: fontrast.OpLineTo, X: 0, Y: 0},
	}
}

func (collisionStubFace) VMetrics() fontrast.VMetrics {
	return fontrast.VMetrics{Ascent: 8, Descent: -2, LineGap: 1}
}
