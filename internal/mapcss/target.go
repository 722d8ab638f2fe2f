package mapcss

import "github.com/MeKo-Tech/osmraster/internal/geodata"

// StyleTarget is the styler's view of a map entity.
type StyleTarget interface {
	GlobalID() uint64
	Tags() geodata.Tags
	// DefaultZIndex is the z-index used when no rule assigns one.
	DefaultZIndex() float64
	// MatchesObjectType reports whether a selector's object type applies.
	MatchesObjectType(t ObjectType) bool
	// CacheSlot distinguishes entity kinds in the style cache key.
	CacheSlot() int
}

// NodeTarget adapts a geodata node for styling.
type NodeTarget struct {
	geodata.Node
}

// DefaultZIndex implements StyleTarget.
func (NodeTarget) DefaultZIndex() float64 { return 4 }

// MatchesObjectType implements StyleTarget.
func (NodeTarget) MatchesObjectType(t ObjectType) bool { return t == ObjectNode }

// CacheSlot implements StyleTarget.
func (NodeTarget) CacheSlot() int { return 0 }

// WayTarget adapts a geodata way for styling.
type WayTarget struct {
	geodata.Way
}

// DefaultZIndex implements StyleTarget.
func (w WayTarget) DefaultZIndex() float64 {
	if w.IsClosed() {
		return 1
	}
	return 3
}

// MatchesObjectType implements StyleTarget.
func (w WayTarget) MatchesObjectType(t ObjectType) bool {
	switch t {
	case ObjectWay:
		return true
	case ObjectArea:
		return w.IsClosed()
	}
	return false
}

// CacheSlot implements StyleTarget.
func (WayTarget) CacheSlot() int { return 1 }

// MultipolygonTarget adapts a geodata multipolygon for styling. A
// multipolygon is always treated as a closed area.
type MultipolygonTarget struct {
	geodata.Multipolygon
}

// DefaultZIndex implements StyleTarget.
func (MultipolygonTarget) DefaultZIndex() float64 { return 1 }

// MatchesObjectType implements StyleTarget.
func (MultipolygonTarget) MatchesObjectType(t ObjectType) bool {
	return t == ObjectWay || t == ObjectArea
}

// CacheSlot implements StyleTarget.
func (MultipolygonTarget) CacheSlot() int { return 2 }
