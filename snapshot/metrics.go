package snapshot

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
)

var (
	snapshotSaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_saves_total",
		Help: "The total number of snapshots written to disk.",
	})

	snapshotSaveErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshot_save_errors_total",
		Help: "The errors that occured while writing a snapshot.",
	}, []string{
		errTypeLabel,
	})

	snapshotSaveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "snapshot_save_latency",
		Help: "The time to write a snapshot to disk.",
	})
)

func instrumentSnapshotSave(f func() error) error {
	start := time.Now()

	err := f()
	if err != nil {
		snapshotSaveErrors.
			With(prometheus.Labels{
				errTypeLabel: errors.Type(err),
			}).
			Inc()
		return err
	}

	snapshotSaves.Inc()
	snapshotSaveLatency.Observe(time.Since(start).Seconds())
	return nil
}
