package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/aukilabs/garth/messages"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testSnapshot(id string) Snapshot {
	return Snapshot{
		ID:        id,
		SceneID:   "garth/1",
		SceneUUID: uuid.NewString(),
		SavedAt:   time.Now().UTC(),
		Objects: []messages.Object{
			{
				ID:            1,
				ParticipantID: 1,
				Asset:         messages.AssetRef{Category: "furniture", Name: "chair.glb"},
				Pose:          messages.Pose{PX: 1, RW: 1},
				Persist:       true,
			},
		},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	store := &Store{Dir: t.TempDir()}

	snapshot := testSnapshot(uuid.NewString())
	require.NoError(t, store.Save(snapshot))

	loaded, err := store.Load(snapshot.ID)
	require.NoError(t, err)
	require.Equal(t, snapshot.ID, loaded.ID)
	require.Equal(t, snapshot.SceneID, loaded.SceneID)
	require.Equal(t, snapshot.SceneUUID, loaded.SceneUUID)
	require.Equal(t, snapshot.Objects, loaded.Objects)
	require.True(t, snapshot.SavedAt.Equal(loaded.SavedAt))
}

func TestStoreLoadNotFound(t *testing.T) {
	store := &Store{Dir: t.TempDir()}

	_, err := store.Load(uuid.NewString())
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeNotFound))

	_, err = store.Load("../../../etc/passwd")
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeNotFound))
}

func TestStoreList(t *testing.T) {
	store := &Store{Dir: t.TempDir()}

	snapshots, err := store.List()
	require.NoError(t, err)
	require.Empty(t, snapshots)

	older := testSnapshot(uuid.NewString())
	older.SavedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.Save(older))

	newer := testSnapshot(uuid.NewString())
	require.NoError(t, store.Save(newer))

	snapshots, err = store.List()
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	require.Equal(t, newer.ID, snapshots[0].ID)
	require.Equal(t, older.ID, snapshots[1].ID)
}

func TestStoreListMissingDir(t *testing.T) {
	store := &Store{Dir: t.TempDir() + "/never-created"}

	snapshots, err := store.List()
	require.NoError(t, err)
	require.Empty(t, snapshots)
}

func TestHandlerPersistsSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &Store{Dir: t.TempDir()}
	handler := Handler{
		Store:        store,
		SnapshotChan: make(chan Snapshot, 8),
	}
	handler.HandleSnapshots(ctx)

	snapshot := testSnapshot(uuid.NewString())
	handler.SnapshotChan <- snapshot

	deadline := time.Now().Add(time.Second)
	for {
		loaded, err := store.Load(snapshot.ID)
		if err == nil {
			require.Equal(t, snapshot.SceneID, loaded.SceneID)
			require.Equal(t, snapshot.Objects, loaded.Objects)
			return
		}

		require.True(t, time.Now().Before(deadline), "snapshot was not written")
		time.Sleep(10 * time.Millisecond)
	}
}
