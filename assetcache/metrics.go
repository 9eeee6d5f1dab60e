package assetcache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeLabel = "outcome"
)

var (
	garthAssetCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asset_cache_hits_total",
		Help: "The total number of asset cache hits.",
	})

	garthAssetCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asset_cache_misses_total",
		Help: "The total number of asset cache misses.",
	})

	garthAssetCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asset_cache_evictions_total",
		Help: "The total number of asset cache evictions.",
	})

	garthAssetCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "asset_cache_entries",
		Help: "The number of templates currently cached.",
	})

	garthAssetLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_loads_total",
		Help: "The total number of asset loads by outcome.",
	}, []string{outcomeLabel})

	garthAssetLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "asset_load_duration_seconds",
		Help:    "The time taken to resolve an asset load.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	garthAssetLoadsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "asset_loads_in_flight",
		Help: "The number of asset fetches currently in flight.",
	})
)

func instrumentCacheHit() {
	garthAssetCacheHits.Inc()
}

func instrumentCacheMiss() {
	garthAssetCacheMisses.Inc()
}

func instrumentCacheEviction() {
	garthAssetCacheEvictions.Inc()
}

func instrumentCacheEntries(n int) {
	garthAssetCacheEntries.Set(float64(n))
}

func instrumentLoad(outcome string, d time.Duration) {
	garthAssetLoads.
		With(prometheus.Labels{outcomeLabel: outcome}).
		Inc()
	garthAssetLoadDuration.Observe(d.Seconds())
}

func instrumentFetchStarted() {
	garthAssetLoadsInFlight.Inc()
}

func instrumentFetchDone() {
	garthAssetLoadsInFlight.Dec()
}
