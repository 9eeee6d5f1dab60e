package snapshot

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// Handler persists queued snapshots in the background so saving never blocks
// a connection goroutine.
type Handler struct {
	Store        *Store
	SnapshotChan chan Snapshot // buffered
}

func (h Handler) HandleSnapshots(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return

			case snapshot := <-h.SnapshotChan:
				if err := instrumentSnapshotSave(func() error {
					return h.Store.Save(snapshot)
				}); err != nil {
					logs.WithTag("snapshot_id", snapshot.ID).
						WithTag("scene_id", snapshot.SceneID).
						Warn(errors.New("saving snapshot failed").Wrap(err))
				}
			}
		}
	}()
}
