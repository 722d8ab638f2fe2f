package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects render statistics for the tile endpoint.
type Metrics struct {
	TilesRendered  prometheus.Counter
	TilesFailed    prometheus.Counter
	BadRequests    prometheus.Counter
	CacheHits      prometheus.Counter
	RenderDuration prometheus.Histogram
}

// NewMetrics builds the collectors and registers them with reg. A nil
// registry leaves the collectors unregistered, which the tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TilesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "osmraster_tiles_rendered_total",
			Help: "Number of tiles rendered successfully.",
		}),
		TilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "osmraster_tiles_failed_total",
			Help: "Number of tile renders that returned an error.",
		}),
		BadRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "osmraster_bad_requests_total",
			Help: "Number of malformed tile requests.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "osmraster_tile_cache_hits_total",
			Help: "Number of tile requests served from the encoded-tile cache.",
		}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "osmraster_render_duration_seconds",
			Help:    "Wall time spent rendering one tile.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}

	if reg != nil {
		reg.MustRegister(m.TilesRendered, m.TilesFailed, m.BadRequests, m.CacheHits, m.RenderDuration)
	}
	return m
}
