package geodata

import (
	"encoding/binary"
	"math"
	"strings"
)

// Node is a view of a single OSM node. The zero value is invalid.
type Node struct {
	r   *Reader
	idx int
}

func (n Node) off() int { return n.r.nodesOff + n.idx*nodeStride }

// GlobalID returns the node's OSM ID.
func (n Node) GlobalID() uint64 {
	return binary.LittleEndian.Uint64(n.r.data[n.off():])
}

// Lat returns the node latitude in degrees.
func (n Node) Lat() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(n.r.data[n.off()+8:]))
}

// Lon returns the node longitude in degrees.
func (n Node) Lon() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(n.r.data[n.off()+16:]))
}

// Tags returns the node's tag list.
func (n Node) Tags() Tags {
	start, count := n.r.refsAt(n.off() + 24)
	return Tags{r: n.r, start: start, count: count}
}

// Way is a view of a single OSM way.
type Way struct {
	r   *Reader
	idx int
}

func (w Way) off() int { return w.r.waysOff + w.idx*wayStride }

// GlobalID returns the way's OSM ID.
func (w Way) GlobalID() uint64 {
	return binary.LittleEndian.Uint64(w.r.data[w.off():])
}

// NodeCount returns the number of nodes in the way.
func (w Way) NodeCount() int {
	_, count := w.r.refsAt(w.off() + 8)
	return count
}

// Node returns the i-th node of the way.
func (w Way) Node(i int) Node {
	start, _ := w.r.refsAt(w.off() + 8)
	return Node{r: w.r, idx: int(w.r.intAt(start + i))}
}

// Tags returns the way's tag list.
func (w Way) Tags() Tags {
	start, count := w.r.refsAt(w.off() + 16)
	return Tags{r: w.r, start: start, count: count}
}

// IsClosed reports whether the way forms a ring: at least three nodes with
// identical first and last node.
func (w Way) IsClosed() bool {
	count := w.NodeCount()
	if count < 3 {
		return false
	}
	start, _ := w.r.refsAt(w.off() + 8)
	return w.r.intAt(start) == w.r.intAt(start+count-1)
}

// Polygon is a view of a single ring of a multipolygon.
type Polygon struct {
	r   *Reader
	idx int
}

func (p Polygon) off() int { return p.r.polygonsOff + p.idx*polygonStride }

// NodeCount returns the number of nodes in the ring.
func (p Polygon) NodeCount() int {
	_, count := p.r.refsAt(p.off())
	return count
}

// Node returns the i-th node of the ring.
func (p Polygon) Node(i int) Node {
	start, _ := p.r.refsAt(p.off())
	return Node{r: p.r, idx: int(p.r.intAt(start + i))}
}

// Multipolygon is a view of a single OSM multipolygon relation.
type Multipolygon struct {
	r   *Reader
	idx int
}

func (m Multipolygon) off() int { return m.r.multipolygonsOff + m.idx*multipolygonStride }

// GlobalID returns the relation's OSM ID.
func (m Multipolygon) GlobalID() uint64 {
	return binary.LittleEndian.Uint64(m.r.data[m.off():])
}

// PolygonCount returns the number of rings.
func (m Multipolygon) PolygonCount() int {
	_, count := m.r.refsAt(m.off() + 8)
	return count
}

// Polygon returns the i-th ring.
func (m Multipolygon) Polygon(i int) Polygon {
	start, _ := m.r.refsAt(m.off() + 8)
	return Polygon{r: m.r, idx: int(m.r.intAt(start + i))}
}

// Tags returns the relation's tag list.
func (m Multipolygon) Tags() Tags {
	start, count := m.r.refsAt(m.off() + 16)
	return Tags{r: m.r, start: start, count: count}
}

// Tags is a view of an entity's key/value list, sorted by key. Keys and
// values are interned in the file's string blob; TagRef exposes the interned
// offsets so that "same string" can be decided without comparing bytes.
type Tags struct {
	r     *Reader
	start int // first entry in all_ints
	count int // number of u32 entries; 4 per tag
}

// TagRef identifies an interned string by its offset in the string blob.
type TagRef struct {
	Offset uint32
	Len    uint32
}

// Len returns the number of tags.
func (t Tags) Len() int { return t.count / 4 }

// KeyRef returns the interned reference of the i-th key.
func (t Tags) KeyRef(i int) TagRef {
	return TagRef{Offset: t.r.intAt(t.start + 4*i), Len: t.r.intAt(t.start + 4*i + 1)}
}

// ValueRef returns the interned reference of the i-th value.
func (t Tags) ValueRef(i int) TagRef {
	return TagRef{Offset: t.r.intAt(t.start + 4*i + 2), Len: t.r.intAt(t.start + 4*i + 3)}
}

// Key returns the i-th key.
func (t Tags) Key(i int) string {
	ref := t.KeyRef(i)
	return t.r.stringAt(int(ref.Offset), int(ref.Len))
}

// Value returns the i-th value.
func (t Tags) Value(i int) string {
	ref := t.ValueRef(i)
	return t.r.stringAt(int(ref.Offset), int(ref.Len))
}

// GetByKey looks up a tag value by key using binary search.
func (t Tags) GetByKey(key string) (string, bool) {
	lo, hi := 0, t.Len()-1
	for lo < hi {
		mid := (lo + hi) / 2
		switch strings.Compare(t.Key(mid), key) {
		case -1:
			lo = mid + 1
		case 1:
			hi = mid
		default:
			return t.Value(mid), true
		}
	}
	if lo == hi && t.Key(lo) == key {
		return t.Value(lo), true
	}
	return "", false
}
