// Package geodata reads the renderer's packed on-disk dataset.
//
// The file is a single little-endian blob produced by the importer: node,
// way, polygon and multipolygon arrays, a tile-reference index sorted by
// (x, y) at the maximum zoom level, a flat array of integer refs and an
// interned string blob. The reader memory-maps the file and hands out
// lightweight views that decode records on access.
package geodata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/MeKo-Tech/osmraster/internal/tile"
)

// ErrMalformed reports a truncated file or an out-of-range reference.
var ErrMalformed = errors.New("malformed geodata file")

const (
	nodeStride         = 32 // id + lat + lon + tag refs
	wayStride          = 24 // id + node refs + tag refs
	polygonStride      = 8  // node refs
	multipolygonStride = 24 // id + polygon refs + tag refs
	tileStride         = 32 // x + y + 3 * (offset, count)
)

// Reader provides read-only access to a memory-mapped geodata file.
// It is safe for concurrent use; all views borrow the mapping and must not
// outlive Close.
type Reader struct {
	f  *os.File
	mm mmap.MMap

	data []byte

	nodeCount         int
	wayCount          int
	polygonCount      int
	multipolygonCount int
	tileCount         int

	nodesOff         int
	waysOff          int
	polygonsOff      int
	multipolygonsOff int
	tilesOff         int

	ints    []byte // all_ints region, 4 bytes per entry
	intsLen int
	strings []byte
}

// Open memory-maps the geodata file at path and validates its layout.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geodata file %s: %w", path, err)
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map %s to memory: %w", path, err)
	}

	r := &Reader{f: f, mm: mm, data: mm}
	if err := r.parseLayout(); err != nil {
		mm.Unmap()
		f.Close()
		return nil, fmt.Errorf("failed to decode geodata from %s: %w", path, err)
	}

	return r, nil
}

// Close unmaps the file. Entity views obtained from the reader become
// invalid after Close returns.
func (r *Reader) Close() error {
	if err := r.mm.Unmap(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}

// NodeCount returns the number of nodes in the dataset.
func (r *Reader) NodeCount() int { return r.nodeCount }

// WayCount returns the number of ways in the dataset.
func (r *Reader) WayCount() int { return r.wayCount }

// MultipolygonCount returns the number of multipolygons in the dataset.
func (r *Reader) MultipolygonCount() int { return r.multipolygonCount }

func (r *Reader) parseLayout() error {
	off := 0

	section := func(stride int) (count, sectionOff int, err error) {
		if off+4 > len(r.data) {
			return 0, 0, ErrMalformed
		}
		count = int(binary.LittleEndian.Uint32(r.data[off:]))
		off += 4
		sectionOff = off
		size := count * stride
		if size < 0 || off+size > len(r.data) {
			return 0, 0, ErrMalformed
		}
		off += size
		return count, sectionOff, nil
	}

	var err error
	if r.nodeCount, r.nodesOff, err = section(nodeStride); err != nil {
		return err
	}
	if r.wayCount, r.waysOff, err = section(wayStride); err != nil {
		return err
	}
	if r.polygonCount, r.polygonsOff, err = section(polygonStride); err != nil {
		return err
	}
	if r.multipolygonCount, r.multipolygonsOff, err = section(multipolygonStride); err != nil {
		return err
	}
	if r.tileCount, r.tilesOff, err = section(tileStride); err != nil {
		return err
	}

	intsLen, intsOff, err := section(4)
	if err != nil {
		return err
	}
	r.intsLen = intsLen
	r.ints = r.data[intsOff : intsOff+4*intsLen]
	r.strings = r.data[intsOff+4*intsLen:]

	return r.validateRefs()
}

// validateRefs walks every record once so that views can decode without
// per-access bounds errors.
func (r *Reader) validateRefs() error {
	checkRefs := func(off int) error {
		start, count := r.refsAt(off)
		if start+count > r.intsLen {
			return ErrMalformed
		}
		return nil
	}
	checkTags := func(off int) error {
		start, count := r.refsAt(off)
		if start+count > r.intsLen || count%4 != 0 {
			return ErrMalformed
		}
		for i := 0; i < count; i += 2 {
			strOff := int(r.intAt(start + i))
			strLen := int(r.intAt(start + i + 1))
			if strOff+strLen > len(r.strings) {
				return ErrMalformed
			}
		}
		return nil
	}

	for i := 0; i < r.nodeCount; i++ {
		if err := checkTags(r.nodesOff + i*nodeStride + 24); err != nil {
			return err
		}
	}
	for i := 0; i < r.wayCount; i++ {
		off := r.waysOff + i*wayStride
		if err := checkRefs(off + 8); err != nil {
			return err
		}
		if err := checkTags(off + 16); err != nil {
			return err
		}
		start, count := r.refsAt(off + 8)
		for j := 0; j < count; j++ {
			if int(r.intAt(start+j)) >= r.nodeCount {
				return ErrMalformed
			}
		}
	}
	for i := 0; i < r.polygonCount; i++ {
		off := r.polygonsOff + i*polygonStride
		if err := checkRefs(off); err != nil {
			return err
		}
		start, count := r.refsAt(off)
		for j := 0; j < count; j++ {
			if int(r.intAt(start+j)) >= r.nodeCount {
				return ErrMalformed
			}
		}
	}
	for i := 0; i < r.multipolygonCount; i++ {
		off := r.multipolygonsOff + i*multipolygonStride
		if err := checkRefs(off + 8); err != nil {
			return err
		}
		if err := checkTags(off + 16); err != nil {
			return err
		}
		start, count := r.refsAt(off + 8)
		for j := 0; j < count; j++ {
			if int(r.intAt(start+j)) >= r.polygonCount {
				return ErrMalformed
			}
		}
	}
	for i := 0; i < r.tileCount; i++ {
		off := r.tilesOff + i*tileStride
		for pair := 0; pair < 3; pair++ {
			start := int(binary.LittleEndian.Uint32(r.data[off+8+8*pair:]))
			count := int(binary.LittleEndian.Uint32(r.data[off+12+8*pair:]))
			if start+count > r.intsLen {
				return ErrMalformed
			}
		}
	}
	return nil
}

func (r *Reader) intAt(i int) uint32 {
	return binary.LittleEndian.Uint32(r.ints[4*i:])
}

func (r *Reader) refsAt(off int) (start, count int) {
	return int(binary.LittleEndian.Uint32(r.data[off:])),
		int(binary.LittleEndian.Uint32(r.data[off+4:]))
}

func (r *Reader) stringAt(off, length int) string {
	return string(r.strings[off : off+length])
}

// IDFilter restricts tile queries to entities with the listed global IDs.
// A nil filter admits everything.
type IDFilter map[uint64]struct{}

// OsmEntities is the result of a tile query.
type OsmEntities struct {
	Nodes         []Node
	Ways          []Way
	Multipolygons []Multipolygon
}

// GetEntitiesInTile returns the entities referenced by the max-zoom tiles
// covered by t, de-duplicated, in tile-index order.
func (r *Reader) GetEntitiesInTile(t tile.Tile, filter IDFilter) OsmEntities {
	return r.queryRange(tile.ToMaxZoomRange(t), filter)
}

// GetEntitiesInTileWithNeighbors behaves like GetEntitiesInTile but extends
// the query to the eight tiles surrounding t, so that geometry spilling over
// tile edges renders consistently.
func (r *Reader) GetEntitiesInTileWithNeighbors(t tile.Tile, filter IDFilter) OsmEntities {
	bounds := tile.ToMaxZoomRange(t)
	delta := uint32(1) << (tile.MaxZoom - t.Zoom)
	maxCoord := uint32(1)<<tile.MaxZoom - 1

	if bounds.MinX >= delta {
		bounds.MinX -= delta
	} else {
		bounds.MinX = 0
	}
	if bounds.MinY >= delta {
		bounds.MinY -= delta
	} else {
		bounds.MinY = 0
	}
	if bounds.MaxX <= maxCoord-delta {
		bounds.MaxX += delta
	} else {
		bounds.MaxX = maxCoord
	}
	if bounds.MaxY <= maxCoord-delta {
		bounds.MaxY += delta
	} else {
		bounds.MaxY = maxCoord
	}

	return r.queryRange(bounds, filter)
}

func (r *Reader) queryRange(bounds tile.Range, filter IDFilter) OsmEntities {
	var result OsmEntities

	seenNodes := newBitset(r.nodeCount)
	seenWays := newBitset(r.wayCount)
	seenMultipolygons := newBitset(r.multipolygonCount)

	admit := func(globalID uint64) bool {
		if filter == nil {
			return true
		}
		_, ok := filter[globalID]
		return ok
	}

	collect := func(recordIdx int) {
		off := r.tilesOff + recordIdx*tileStride

		refs := func(pair int) (int, int) {
			return r.refsAt(off + 8 + 8*pair)
		}

		start, count := refs(0)
		for i := 0; i < count; i++ {
			idx := int(r.intAt(start + i))
			node := Node{r: r, idx: idx}
			if !seenNodes.testAndSet(idx) && admit(node.GlobalID()) {
				result.Nodes = append(result.Nodes, node)
			}
		}

		start, count = refs(1)
		for i := 0; i < count; i++ {
			idx := int(r.intAt(start + i))
			way := Way{r: r, idx: idx}
			if !seenWays.testAndSet(idx) && admit(way.GlobalID()) {
				result.Ways = append(result.Ways, way)
			}
		}

		start, count = refs(2)
		for i := 0; i < count; i++ {
			idx := int(r.intAt(start + i))
			mp := Multipolygon{r: r, idx: idx}
			if !seenMultipolygons.testAndSet(idx) && admit(mp.GlobalID()) {
				result.Multipolygons = append(result.Multipolygons, mp)
			}
		}
	}

	startIdx := 0
	minX := bounds.MinX
	for startIdx < r.tileCount {
		idx, ok := r.nextGoodTile(bounds, minX, startIdx)
		if !ok {
			break
		}

		curX, _ := r.tileXY(idx)
		for idx < r.tileCount {
			x, y := r.tileXY(idx)
			if x != curX || y > bounds.MaxY {
				break
			}
			if y >= bounds.MinY {
				collect(idx)
			}
			idx++
		}

		startIdx = idx
		if curX == ^uint32(0) {
			break
		}
		minX = curX + 1
	}

	return result
}

func (r *Reader) tileXY(idx int) (uint32, uint32) {
	off := r.tilesOff + idx*tileStride
	return binary.LittleEndian.Uint32(r.data[off:]),
		binary.LittleEndian.Uint32(r.data[off+4:])
}

// nextGoodTile finds the first tile record at or after startIdx whose (x, y)
// is lexicographically >= (minX, bounds.MinY) and still within the query
// bounds.
func (r *Reader) nextGoodTile(bounds tile.Range, minX uint32, startIdx int) (int, bool) {
	lo, hi := startIdx, r.tileCount-1
	if lo > hi {
		return 0, false
	}

	largeEnough := func(idx int) bool {
		x, y := r.tileXY(idx)
		return x > minX || (x == minX && y >= bounds.MinY)
	}

	for lo < hi {
		mid := (lo + hi) / 2
		if largeEnough(mid) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}

	x, y := r.tileXY(lo)
	smallEnough := x < bounds.MaxX || (x == bounds.MaxX && y <= bounds.MaxY)
	if largeEnough(lo) && smallEnough {
		return lo, true
	}
	return 0, false
}

type bitset []uint64

func newBitset(size int) bitset {
	return make(bitset, (size+63)/64)
}

// testAndSet returns the previous state of bit i and sets it.
func (b bitset) testAndSet(i int) bool {
	word, mask := i/64, uint64(1)<<(i%64)
	was := b[word]&mask != 0
	b[word] |= mask
	return was
}
