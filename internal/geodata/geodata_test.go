package geodata

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/osmraster/internal/tile"
)

func writeTempGeodata(t *testing.T, d *Dataset) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, d))

	path := filepath.Join(t.TempDir(), "geodata.bin")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func openTempGeodata(t *testing.T, d *Dataset) *Reader {
	t.Helper()
	r, err := Open(writeTempGeodata(t, d))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// maxZoomTileNode fabricates a node whose coordinates land in the given
// max-zoom tile. The projection is monotone, so placing the node at the tile
// center is enough.
func maxZoomTileNode(globalID uint64, x, y uint32) RawNode {
	// Invert the Web Mercator projection for the tile center.
	const dim = float64(tile.Size) * (1 << tile.MaxZoom)
	px := (float64(x) + 0.5) * tile.Size
	py := (float64(y) + 0.5) * tile.Size

	lon := px/dim*360 - 180
	lat := invMercator(py / dim)

	return RawNode{GlobalID: globalID, Lat: lat, Lon: lon}
}

func invMercator(yFactor float64) float64 {
	// y = (π − ln(tan(π/4 + lat/2))) / 2π
	latRad := 2 * (math.Atan(math.Exp(math.Pi-yFactor*2*math.Pi)) - math.Pi/4)
	return latRad * 180 / math.Pi
}

func TestSyntheticTileGrid(t *testing.T) {
	type gridTile struct {
		x, y uint32
		good bool
	}

	// The query tile {zoom:15, x:0, y:1} expands to x in [0,7], y in [8,15].
	grid := []gridTile{
		{1, 7, false},
		{1, 8, true},
		{1, 9, true},
		{1, 13, true},
		{2, 10, true},
		{2, 11, true},
		{2, 15, true},
		{2, 16, false},
		{2, 17, false},
		{4, 1, false},
		{4, 4, false},
		{5, 20, false},
		{5, 23, false},
		{5, 200, false},
		{7, 6, false},
		{7, 11, true},
		{7, 12, true},
		{7, 14, true},
		{7, 16, false},
		{7, 17, false},
	}

	var d Dataset
	var want []uint64
	for i, g := range grid {
		d.Nodes = append(d.Nodes, maxZoomTileNode(uint64(i), g.x, g.y))
		if g.good {
			want = append(want, uint64(i))
		}
	}

	r := openTempGeodata(t, &d)

	entities := r.GetEntitiesInTile(tile.Tile{Zoom: 15, X: 0, Y: 1}, nil)

	var got []uint64
	for _, n := range entities.Nodes {
		got = append(got, n.GlobalID())
	}
	require.Equal(t, want, got)
}

func TestSyntheticTileGridWithFilter(t *testing.T) {
	var d Dataset
	d.Nodes = append(d.Nodes,
		maxZoomTileNode(100, 1, 8),
		maxZoomTileNode(200, 1, 9),
		maxZoomTileNode(300, 2, 10),
	)

	r := openTempGeodata(t, &d)

	filter := IDFilter{200: {}}
	entities := r.GetEntitiesInTile(tile.Tile{Zoom: 15, X: 0, Y: 1}, filter)

	require.Len(t, entities.Nodes, 1)
	require.Equal(t, uint64(200), entities.Nodes[0].GlobalID())
}

func TestRoundTrip(t *testing.T) {
	d := &Dataset{
		Nodes: []RawNode{
			{GlobalID: 10, Lat: 55.75, Lon: 37.61, Tags: map[string]string{"name": "center", "amenity": "cafe"}},
			{GlobalID: 11, Lat: 55.7501, Lon: 37.6101},
			{GlobalID: 12, Lat: 55.7502, Lon: 37.6102},
			{GlobalID: 13, Lat: 55.7503, Lon: 37.6103},
		},
		Ways: []RawWay{
			{GlobalID: 20, NodeIDs: []uint32{0, 1, 2, 0}, Tags: map[string]string{"building": "yes"}},
			{GlobalID: 21, NodeIDs: []uint32{1, 3}, Tags: map[string]string{"highway": "path"}},
		},
		Polygons: [][]uint32{{0, 1, 2, 0}},
		Multipolygons: []RawMultipolygon{
			{GlobalID: 30, PolygonIDs: []uint32{0}, Tags: map[string]string{"landuse": "forest"}},
		},
	}

	r := openTempGeodata(t, d)

	require.Equal(t, 4, r.NodeCount())
	require.Equal(t, 2, r.WayCount())
	require.Equal(t, 1, r.MultipolygonCount())

	queryTile := tile.CoordsToMaxZoomTile(55.75, 37.61)
	entities := r.GetEntitiesInTile(tile.Tile{Zoom: 14, X: queryTile.X >> 4, Y: queryTile.Y >> 4}, nil)

	require.Len(t, entities.Nodes, 4)
	require.Len(t, entities.Ways, 2)
	require.Len(t, entities.Multipolygons, 1)

	way := entities.Ways[0]
	require.Equal(t, uint64(20), way.GlobalID())
	require.Equal(t, 4, way.NodeCount())
	require.True(t, way.IsClosed())
	require.Equal(t, uint64(10), way.Node(0).GlobalID())
	require.InDelta(t, 55.75, way.Node(0).Lat(), 1e-9)
	require.InDelta(t, 37.61, way.Node(0).Lon(), 1e-9)

	open := entities.Ways[1]
	require.False(t, open.IsClosed())

	val, ok := way.Tags().GetByKey("building")
	require.True(t, ok)
	require.Equal(t, "yes", val)

	mp := entities.Multipolygons[0]
	require.Equal(t, uint64(30), mp.GlobalID())
	require.Equal(t, 1, mp.PolygonCount())
	require.Equal(t, 4, mp.Polygon(0).NodeCount())
	require.Equal(t, uint64(11), mp.Polygon(0).Node(1).GlobalID())
}

func TestTagsLookup(t *testing.T) {
	d := &Dataset{
		Nodes: []RawNode{{
			GlobalID: 1,
			Lat:      10,
			Lon:      10,
			Tags: map[string]string{
				"amenity": "cafe",
				"cuisine": "coffee_shop",
				"name":    "Bean There",
				"smoking": "no",
			},
		}},
	}

	r := openTempGeodata(t, d)

	mz := tile.CoordsToMaxZoomTile(10, 10)
	entities := r.GetEntitiesInTile(tile.Tile{Zoom: 18, X: mz.X, Y: mz.Y}, nil)
	require.Len(t, entities.Nodes, 1)

	tags := entities.Nodes[0].Tags()
	require.Equal(t, 4, tags.Len())

	// Keys come back sorted.
	require.Equal(t, "amenity", tags.Key(0))
	require.Equal(t, "smoking", tags.Key(3))

	for k, want := range d.Nodes[0].Tags {
		got, ok := tags.GetByKey(k)
		require.True(t, ok, "key %s", k)
		require.Equal(t, want, got)
	}

	_, ok := tags.GetByKey("missing")
	require.False(t, ok)

	// Interned refs: identical strings share an offset.
	d2 := &Dataset{
		Nodes: []RawNode{
			{GlobalID: 1, Lat: 10, Lon: 10, Tags: map[string]string{"highway": "primary"}},
			{GlobalID: 2, Lat: 10.0001, Lon: 10.0001, Tags: map[string]string{"highway": "primary"}},
		},
	}
	r2 := openTempGeodata(t, d2)
	e2 := r2.GetEntitiesInTile(tile.Tile{Zoom: 12, X: mz.X >> 6, Y: mz.Y >> 6}, nil)
	require.Len(t, e2.Nodes, 2)
	require.Equal(t, e2.Nodes[0].Tags().KeyRef(0), e2.Nodes[1].Tags().KeyRef(0))
	require.Equal(t, e2.Nodes[0].Tags().ValueRef(0), e2.Nodes[1].Tags().ValueRef(0))
}

func TestNeighborQueryFindsAdjacentEntities(t *testing.T) {
	// Two nodes in horizontally adjacent max-zoom tiles.
	var d Dataset
	d.Nodes = append(d.Nodes,
		maxZoomTileNode(1, 1000, 1000),
		maxZoomTileNode(2, 1001, 1000),
		maxZoomTileNode(3, 1005, 1000),
	)

	r := openTempGeodata(t, &d)

	center := tile.Tile{Zoom: 18, X: 1000, Y: 1000}

	plain := r.GetEntitiesInTile(center, nil)
	require.Len(t, plain.Nodes, 1)

	withNeighbors := r.GetEntitiesInTileWithNeighbors(center, nil)
	require.Len(t, withNeighbors.Nodes, 2)
}

func TestOpenRejectsTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &Dataset{Nodes: []RawNode{{GlobalID: 1, Lat: 1, Lon: 1}}}))

	path := filepath.Join(t.TempDir(), "trunc.bin")
	require.NoError(t, os.WriteFile(path, buf.Bytes()[:buf.Len()-10], 0o644))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrMalformed)
}
