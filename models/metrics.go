package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	garthSceneCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scene_count",
		Help: "The number of live scenes.",
	})

	garthSceneCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_count_total",
		Help: "The total number of scenes created.",
	})

	garthObjectCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scene_object_count",
		Help: "The number of placed objects across all scenes.",
	})
)

func instrumentIncreaseSceneGauge() {
	garthSceneCount.Inc()
}

func instrumentDecreaseSceneGauge() {
	garthSceneCount.Dec()
}

func instrumentCountScene() {
	garthSceneCountTotal.Inc()
}

func instrumentIncreaseObjectGauge() {
	garthObjectCount.Inc()
}

func instrumentDecreaseObjectGauge() {
	garthObjectCount.Dec()
}
