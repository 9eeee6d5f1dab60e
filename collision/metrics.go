package collision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	modeLabel = "mode"

	modeAccelerated = "accelerated"
	modeFallback    = "fallback"
)

var (
	garthCollisionRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collision_rebuilds_total",
		Help: "The total number of collision delegate rebuilds.",
	})

	garthCollisionRebuildFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collision_rebuild_failures_total",
		Help: "The total number of failed collision delegate rebuilds.",
	})

	garthCollisionQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collision_queries_total",
		Help: "The total number of collision queries by mode.",
	}, []string{modeLabel})
)

func instrumentRebuild() {
	garthCollisionRebuilds.Inc()
}

func instrumentRebuildFailure() {
	garthCollisionRebuildFailures.Inc()
}

func instrumentQuery(mode string) {
	garthCollisionQueries.
		With(prometheus.Labels{modeLabel: mode}).
		Inc()
}
