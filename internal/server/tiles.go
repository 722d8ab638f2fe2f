// Package server exposes the renderer over HTTP as a slippy-map tile
// endpoint.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MeKo-Tech/osmraster/internal/geodata"
	"github.com/MeKo-Tech/osmraster/internal/mapcss"
	"github.com/MeKo-Tech/osmraster/internal/renderer"
	"github.com/MeKo-Tech/osmraster/internal/tile"
)

// DefaultCacheSize is the number of encoded tiles kept in memory.
const DefaultCacheSize = 1024

// TileHandlerConfig configures the tile endpoint.
type TileHandlerConfig struct {
	// CacheSize bounds the encoded-tile LRU; zero uses DefaultCacheSize,
	// a negative value disables caching.
	CacheSize int
	// Filter restricts rendering to the listed global IDs (debugging aid).
	Filter geodata.IDFilter
}

// TileHandler serves GET /{z}/{x}/{y}.png, rendering tiles on demand.
// An "@2x" suffix before ".png" renders at double scale.
type TileHandler struct {
	reader  *geodata.Reader
	styler  *mapcss.Styler
	drawer  *renderer.Drawer
	cache   *lru.Cache[string, []byte]
	filter  geodata.IDFilter
	metrics *Metrics
	logger  *slog.Logger
}

// NewTileHandler wires the rendering pipeline into an HTTP handler.
func NewTileHandler(
	reader *geodata.Reader,
	styler *mapcss.Styler,
	drawer *renderer.Drawer,
	cfg TileHandlerConfig,
	metrics *Metrics,
	logger *slog.Logger,
) (*TileHandler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	h := &TileHandler{
		reader:  reader,
		styler:  styler,
		drawer:  drawer,
		filter:  cfg.Filter,
		metrics: metrics,
		logger:  logger,
	}

	cacheSize := cfg.CacheSize
	if cacheSize == 0 {
		cacheSize = DefaultCacheSize
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, []byte](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create tile cache: %w", err)
		}
		h.cache = cache
	}

	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *TileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	t, scale, ok := parseTilePath(r.URL.Path)
	if !ok {
		h.metrics.BadRequests.Inc()
		http.Error(w, "invalid tile request", http.StatusBadRequest)
		return
	}

	cacheKey := fmt.Sprintf("%s@%d", t.String(), scale)
	if h.cache != nil {
		if data, ok := h.cache.Get(cacheKey); ok {
			h.metrics.CacheHits.Inc()
			writeTile(w, data)
			return
		}
	}

	h.logger.Info("rendering tile", "tile", t.String(), "scale", scale)

	start := time.Now()
	entities := h.reader.GetEntitiesInTileWithNeighbors(t, h.filter)
	data, err := h.drawer.DrawTile(entities, t, scale, h.styler)
	h.metrics.RenderDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		h.metrics.TilesFailed.Inc()
		h.logger.Error("failed to render tile", "tile", t.String(), "error", err)
		http.Error(w, "failed to render tile", http.StatusInternalServerError)
		return
	}
	h.metrics.TilesRendered.Inc()

	if h.cache != nil {
		h.cache.Add(cacheKey, data)
	}
	writeTile(w, data)
}

func writeTile(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// parseTilePath parses "/{z}/{x}/{y}.png" or "/{z}/{x}/{y}@2x.png",
// validating the coordinates against the zoom level.
func parseTilePath(path string) (tile.Tile, int, bool) {
	var t tile.Tile

	trimmed, ok := strings.CutSuffix(path, ".png")
	if !ok {
		return t, 0, false
	}

	scale := 1
	if rest, ok := strings.CutSuffix(trimmed, "@2x"); ok {
		scale = 2
		trimmed = rest
	}

	parts := strings.Split(strings.TrimPrefix(trimmed, "/"), "/")
	if len(parts) != 3 {
		return t, 0, false
	}

	zoom, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return t, 0, false
	}
	x, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return t, 0, false
	}
	y, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return t, 0, false
	}

	t = tile.Tile{Zoom: uint8(zoom), X: uint32(x), Y: uint32(y)}
	if !t.Valid() {
		return t, 0, false
	}
	return t, scale, true
}
