package geodata

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/MeKo-Tech/osmraster/internal/tile"
)

// RawNode is an in-memory node destined for a geodata file.
type RawNode struct {
	GlobalID uint64
	Lat      float64
	Lon      float64
	Tags     map[string]string
}

// RawWay is an in-memory way; NodeIDs index into the dataset's node slice.
type RawWay struct {
	GlobalID uint64
	NodeIDs  []uint32
	Tags     map[string]string
}

// RawMultipolygon is an in-memory multipolygon; PolygonIDs index into the
// dataset's polygon slice.
type RawMultipolygon struct {
	GlobalID   uint64
	PolygonIDs []uint32
	Tags       map[string]string
}

// Dataset is the in-memory form of a geodata file, as assembled by the
// importer or by tests.
type Dataset struct {
	Nodes         []RawNode
	Ways          []RawWay
	Polygons      [][]uint32
	Multipolygons []RawMultipolygon
}

const (
	localNode         = 0
	localWay          = 1
	localMultipolygon = 2
	localKinds        = 3
)

// tileRef associates one entity with one max-zoom tile. The sort order
// (x, y, kind, ref) is what the reader's column walk depends on.
type tileRef struct {
	x, y uint32
	kind uint8
	ref  uint32
}

// Write serializes the dataset into the packed on-disk format.
func Write(w io.Writer, d *Dataset) error {
	data := &bufferedData{stringToOffset: make(map[string]int)}
	out := &leWriter{w: w}

	out.u32(len(d.Nodes))
	for i := range d.Nodes {
		n := &d.Nodes[i]
		out.u64(n.GlobalID)
		out.f64(n.Lat)
		out.f64(n.Lon)
		writeTags(out, n.Tags, data)
	}

	out.u32(len(d.Ways))
	for i := range d.Ways {
		way := &d.Ways[i]
		out.u64(way.GlobalID)
		writeRefs(out, way.NodeIDs, data)
		writeTags(out, way.Tags, data)
	}

	out.u32(len(d.Polygons))
	for _, p := range d.Polygons {
		writeRefs(out, p, data)
	}

	out.u32(len(d.Multipolygons))
	for i := range d.Multipolygons {
		mp := &d.Multipolygons[i]
		out.u64(mp.GlobalID)
		writeRefs(out, mp.PolygonIDs, data)
		writeTags(out, mp.Tags, data)
	}

	refs, err := tileReferences(d)
	if err != nil {
		return err
	}
	writeTileReferences(out, refs, data)

	out.u32(len(data.allInts))
	for _, v := range data.allInts {
		out.u32raw(v)
	}
	out.bytes(data.blob)

	return out.err
}

func tileReferences(d *Dataset) ([]tileRef, error) {
	var refs []tileRef

	for i := range d.Nodes {
		n := &d.Nodes[i]
		t := tile.CoordsToMaxZoomTile(n.Lat, n.Lon)
		refs = append(refs, tileRef{x: t.X, y: t.Y, kind: localNode, ref: uint32(i)})
	}

	addRange := func(kind uint8, entityIdx int, nodeIDs []uint32) error {
		first := true
		var r tile.Range
		for _, id := range nodeIDs {
			if int(id) >= len(d.Nodes) {
				return fmt.Errorf("node ref %d out of range", id)
			}
			n := &d.Nodes[id]
			t := tile.CoordsToMaxZoomTile(n.Lat, n.Lon)
			if first {
				r = tile.Range{MinX: t.X, MaxX: t.X, MinY: t.Y, MaxY: t.Y}
				first = false
				continue
			}
			if t.X < r.MinX {
				r.MinX = t.X
			}
			if t.X > r.MaxX {
				r.MaxX = t.X
			}
			if t.Y < r.MinY {
				r.MinY = t.Y
			}
			if t.Y > r.MaxY {
				r.MaxY = t.Y
			}
		}
		if first {
			return nil
		}
		for x := r.MinX; x <= r.MaxX; x++ {
			for y := r.MinY; y <= r.MaxY; y++ {
				refs = append(refs, tileRef{x: x, y: y, kind: kind, ref: uint32(entityIdx)})
			}
		}
		return nil
	}

	for i := range d.Ways {
		if err := addRange(localWay, i, d.Ways[i].NodeIDs); err != nil {
			return nil, err
		}
	}
	for i := range d.Multipolygons {
		var nodeIDs []uint32
		for _, polyID := range d.Multipolygons[i].PolygonIDs {
			if int(polyID) >= len(d.Polygons) {
				return nil, fmt.Errorf("polygon ref %d out of range", polyID)
			}
			nodeIDs = append(nodeIDs, d.Polygons[polyID]...)
		}
		if err := addRange(localMultipolygon, i, nodeIDs); err != nil {
			return nil, err
		}
	}

	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.x != b.x {
			return a.x < b.x
		}
		if a.y != b.y {
			return a.y < b.y
		}
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		return a.ref < b.ref
	})

	// Drop duplicates produced by entities spanning the same tile twice.
	dedup := refs[:0]
	for i, r := range refs {
		if i > 0 && r == refs[i-1] {
			continue
		}
		dedup = append(dedup, r)
	}
	return dedup, nil
}

func writeTileReferences(out *leWriter, refs []tileRef, data *bufferedData) {
	uniqueTiles := 0
	for i, r := range refs {
		if i == 0 || r.x != refs[i-1].x || r.y != refs[i-1].y {
			uniqueTiles++
		}
	}
	out.u32(uniqueTiles)

	curOffset := len(data.allInts)
	var counts [localKinds]int

	dumpCounts := func() {
		for _, cnt := range counts {
			out.u32(curOffset)
			out.u32(cnt)
			curOffset += cnt
		}
		counts = [localKinds]int{}
	}

	started := false
	for i, r := range refs {
		if !started || r.x != refs[i-1].x || r.y != refs[i-1].y {
			if started {
				dumpCounts()
			}
			out.u32raw(r.x)
			out.u32raw(r.y)
			started = true
		}
		data.allInts = append(data.allInts, r.ref)
		counts[r.kind]++
	}
	if started {
		dumpCounts()
	}
}

func writeRefs(out *leWriter, refs []uint32, data *bufferedData) {
	offset := len(data.allInts)
	data.allInts = append(data.allInts, refs...)
	out.u32(offset)
	out.u32(len(refs))
}

func writeTags(out *leWriter, tags map[string]string, data *bufferedData) {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	offset := len(data.allInts)
	for _, k := range keys {
		kOff, kLen := data.addString(k)
		vOff, vLen := data.addString(tags[k])
		data.allInts = append(data.allInts, uint32(kOff), uint32(kLen), uint32(vOff), uint32(vLen))
	}
	out.u32(offset)
	out.u32(len(data.allInts) - offset)
}

type bufferedData struct {
	allInts        []uint32
	stringToOffset map[string]int
	blob           []byte
}

func (d *bufferedData) addString(s string) (offset, length int) {
	if off, ok := d.stringToOffset[s]; ok {
		return off, len(s)
	}
	off := len(d.blob)
	d.stringToOffset[s] = off
	d.blob = append(d.blob, s...)
	return off, len(s)
}

// leWriter writes little-endian primitives, capturing the first error.
type leWriter struct {
	w   io.Writer
	err error
	buf [8]byte
}

func (w *leWriter) u32(v int) {
	if v < 0 || int64(v) > math.MaxUint32 {
		w.fail(fmt.Errorf("%d does not fit into u32", v))
		return
	}
	w.u32raw(uint32(v))
}

func (w *leWriter) u32raw(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.bytes(w.buf[:4])
}

func (w *leWriter) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	w.bytes(w.buf[:8])
}

func (w *leWriter) f64(v float64) {
	w.u64(math.Float64bits(v))
}

func (w *leWriter) bytes(b []byte) {
	if w.err != nil {
		return
	}
	_, err := w.w.Write(b)
	w.fail(err)
}

func (w *leWriter) fail(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}
