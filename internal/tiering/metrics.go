package tiering

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabshot_asset_cache_hits_total",
		Help: "Embedded asset reads served from the in-memory cache.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabshot_asset_cache_misses_total",
		Help: "Embedded asset reads that went to the database.",
	})
	migrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabshot_legacy_migrations_total",
		Help: "Assets copied forward from the legacy store on read.",
	})
	placements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabshot_persist_total",
		Help: "Persisted thumbnails by storage tier and result.",
	}, []string{"tier", "result"})
	embeddedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tabshot_embedded_bytes",
		Help: "Bytes held by the embedded and legacy asset stores at the last usage check.",
	})
)
