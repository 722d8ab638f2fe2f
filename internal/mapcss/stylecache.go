package mapcss

import (
	"encoding/binary"
	"math"
	"sync"
)

// StyleCache memoizes cascade results. Two entities share an entry when they
// have the same kind, default z-index, zoom and the same identity of every
// tag a selector could inspect, of every tag a text property reads, and of
// the layer tag; all other tags are left out of the key.
type StyleCache struct {
	mu    sync.RWMutex
	cache map[string][]*Style

	// tagValueMatters maps a tag key to whether any test on it inspects the
	// value (true) or just its presence (false).
	tagValueMatters map[string]bool
}

// NewStyleCache inspects the rule list to learn which tags matter.
func NewStyleCache(rules []Rule) *StyleCache {
	tagValueMatters := map[string]bool{
		// The layer tag's value is always part of the key, even without tests.
		"layer": true,
	}

	for ri := range rules {
		for si := range rules[ri].Selectors {
			for _, test := range rules[ri].Selectors[si].Tests {
				tagValueMatters[test.TagName()] = tagValueMatters[test.TagName()] || test.ValueMatters()
			}
		}
		// A "text" property names a tag whose value ends up inside the
		// cached style, so that tag's value is part of the key as well.
		for _, prop := range rules[ri].Properties {
			if prop.Name != "text" {
				continue
			}
			switch v := prop.Value.(type) {
			case Identifier:
				tagValueMatters[string(v)] = true
			case StringValue:
				tagValueMatters[string(v)] = true
			}
		}
	}

	return &StyleCache{
		cache:           make(map[string][]*Style),
		tagValueMatters: tagValueMatters,
	}
}

// Get returns the cached style list for an entity, if present.
func (c *StyleCache) Get(target StyleTarget, zoom uint8) ([]*Style, bool) {
	key := c.key(target, zoom)

	c.mu.RLock()
	styles, ok := c.cache[key]
	c.mu.RUnlock()
	return styles, ok
}

// Insert stores a computed style list. A concurrent duplicate insert is
// benign; the first entry wins so that callers always share one slice.
func (c *StyleCache) Insert(target StyleTarget, zoom uint8, styles []*Style) {
	key := c.key(target, zoom)

	c.mu.Lock()
	if _, ok := c.cache[key]; !ok {
		c.cache[key] = styles
	}
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *StyleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *StyleCache) key(target StyleTarget, zoom uint8) string {
	buf := make([]byte, 0, 64)
	buf = append(buf, byte(target.CacheSlot()), zoom)
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(target.DefaultZIndex()))

	tags := target.Tags()
	for i := 0; i < tags.Len(); i++ {
		ref := tags.KeyRef(i)
		valueMatters, relevant := c.tagValueMatters[tags.Key(i)]
		if !relevant {
			continue
		}
		buf = binary.LittleEndian.AppendUint32(buf, ref.Offset)
		if valueMatters {
			buf = binary.LittleEndian.AppendUint32(buf, tags.ValueRef(i).Offset)
		}
	}

	return string(buf)
}
