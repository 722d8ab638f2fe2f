package draw

import (
	"log/slog"
	"path/filepath"
	"sync"
)

// IconCache loads icons lazily and at most once per name. A failed load is
// memoized as nil so broken icons are not retried on every tile.
type IconCache struct {
	mu    sync.RWMutex
	icons map[string]*Icon

	basePath string
	logger   *slog.Logger
}

// NewIconCache creates a cache rooted at basePath.
func NewIconCache(basePath string, logger *slog.Logger) *IconCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &IconCache{
		icons:    make(map[string]*Icon),
		basePath: basePath,
		logger:   logger,
	}
}

// Get returns the icon for name, loading it on first use. It returns nil
// when the icon could not be loaded.
func (c *IconCache) Get(name string) *Icon {
	c.mu.RLock()
	icon, ok := c.icons[name]
	c.mu.RUnlock()
	if ok {
		return icon
	}

	fullPath := filepath.Join(c.basePath, name)
	loaded, err := LoadIcon(fullPath)
	if err != nil {
		c.logger.Warn("failed to load icon", "path", fullPath, "error", err)
		loaded = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if icon, ok := c.icons[name]; ok {
		// Another worker beat us to it; keep the first result.
		return icon
	}
	c.icons[name] = loaded
	return loaded
}
