package raido

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/garth/assetcache"
	"github.com/aukilabs/garth/bloom"
	"github.com/aukilabs/garth/collision"
	"github.com/aukilabs/garth/messages"
	"github.com/aukilabs/garth/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mutex sync.Mutex
	sent  []messages.Message
}

func (s *recordingSender) Send(m messages.Message) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.sent = append(s.sent, m)
}

func (s *recordingSender) SendMsg(messages.Msg) {}

func (s *recordingSender) all() []messages.Message {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]messages.Message(nil), s.sent...)
}

// unitFetcher serves a 2x2x2 cube template centered on the pose for every
// known key, and not found for the "missing" category.
type unitFetcher struct{}

func (unitFetcher) Fetch(_ context.Context, key models.AssetKey) (*models.AssetTemplate, error) {
	if key.Category == "missing" {
		return nil, errors.New("no such asset").WithType(assetcache.ErrTypeNotFound)
	}

	return &models.AssetTemplate{
		Key:    key,
		Format: "model/gltf-binary",
		Bounds: collision.Volume{
			Min: collision.Vector3f{X: -1, Y: -1, Z: -1},
			Max: collision.Vector3f{X: 1, Y: 1, Z: 1},
		},
	}, nil
}

func newTestModule() *Module {
	loader := assetcache.NewLoader(unitFetcher{}, assetcache.New(8), bloom.New(64, 0.01), bloom.New(64, 0.01))

	return &Module{
		Loader:      loader,
		IDs:         &models.SequentialIDGenerator{},
		NonBlocking: []string{"roads"},
	}
}

func moduleMsg(t *testing.T, m messages.Message) messages.Msg {
	t.Helper()

	msg, err := messages.MsgFromMessage(m)
	require.NoError(t, err)
	return msg
}

func placeObject(scene *models.Scene, id uint32, category string, x, y, z float32) *models.SceneObject {
	object := &models.SceneObject{
		ID:            id,
		ParticipantID: 1,
		AssetKey:      models.AssetKey{Category: category, Name: "cube.glb"},
	}
	object.SetPose(models.Pose{PX: x, PY: y, PZ: z, RW: 1})
	scene.AddObject(object)
	return object
}

func checkPlacement(t *testing.T, module *Module, req messages.PlacementCheckRequest) messages.Message {
	t.Helper()

	req.Type = messages.TypePlacementCheckRequest
	req.Timestamp = time.Now()

	var sender recordingSender
	err := module.HandleMsg(context.Background(), &sender, moduleMsg(t, req))
	require.NoError(t, err)

	sent := sender.all()
	require.Len(t, sent, 1)
	return sent[0]
}

func TestModulePlacementCheckNewPlacement(t *testing.T) {
	module := newTestModule()

	scene := models.NewScene(1, 15*time.Millisecond)
	defer scene.Close()
	placeObject(scene, 1, "buildings", 0, 0, 0)

	module.Init(scene, &models.Participant{ID: 1})
	require.Equal(t, 1, module.state.Index.Len())

	// overlapping the placed cube:
	res, ok := checkPlacement(t, module, messages.PlacementCheckRequest{
		RequestID: 1,
		Asset:     messages.AssetRef{Category: "buildings", Name: "cube.glb"},
		Pose:      messages.Pose{PX: 0.5, RW: 1},
	}).(messages.PlacementCheckResponse)
	require.True(t, ok)
	require.EqualValues(t, 1, res.RequestID)
	require.False(t, res.Valid)
	require.EqualValues(t, 1, res.CollidingObjectID)

	// far away:
	res, ok = checkPlacement(t, module, messages.PlacementCheckRequest{
		RequestID: 2,
		Asset:     messages.AssetRef{Category: "buildings", Name: "cube.glb"},
		Pose:      messages.Pose{PX: 10, RW: 1},
	}).(messages.PlacementCheckResponse)
	require.True(t, ok)
	require.True(t, res.Valid)
	require.Zero(t, res.CollidingObjectID)
}

func TestModulePlacementCheckMovedObject(t *testing.T) {
	module := newTestModule()

	scene := models.NewScene(1, 15*time.Millisecond)
	defer scene.Close()
	placeObject(scene, 1, "buildings", 0, 0, 0)
	moved := placeObject(scene, 2, "buildings", 10, 0, 0)

	module.Init(scene, &models.Participant{ID: 1})

	// apart, the object at its own spot is valid:
	res, ok := checkPlacement(t, module, messages.PlacementCheckRequest{
		RequestID: 1,
		ObjectID:  2,
	}).(messages.PlacementCheckResponse)
	require.True(t, ok)
	require.True(t, res.Valid)

	// the client moved it onto object 1:
	moved.SetPose(models.Pose{PX: 1, RW: 1})
	err := module.HandleMsg(context.Background(), &recordingSender{}, moduleMsg(t, messages.ObjectMove{
		Type:      messages.TypeObjectMove,
		Timestamp: time.Now(),
		ObjectID:  2,
		Pose:      messages.Pose{PX: 1, RW: 1},
	}))
	require.NoError(t, err)

	res, ok = checkPlacement(t, module, messages.PlacementCheckRequest{
		RequestID: 2,
		ObjectID:  2,
	}).(messages.PlacementCheckResponse)
	require.True(t, ok)
	require.False(t, res.Valid)
	require.EqualValues(t, 1, res.CollidingObjectID)
}

func TestModulePlacementCheckNonBlocking(t *testing.T) {
	module := newTestModule()

	scene := models.NewScene(1, 15*time.Millisecond)
	defer scene.Close()
	placeObject(scene, 1, "roads", 0, 0, 0)

	module.Init(scene, &models.Participant{ID: 1})

	res, ok := checkPlacement(t, module, messages.PlacementCheckRequest{
		RequestID: 1,
		Asset:     messages.AssetRef{Category: "buildings", Name: "cube.glb"},
		Pose:      messages.Pose{PX: 0.5, RW: 1},
	}).(messages.PlacementCheckResponse)
	require.True(t, ok)
	require.True(t, res.Valid)
}

func TestModulePlacementCheckErrors(t *testing.T) {
	tests := []struct {
		scenario string
		req      messages.PlacementCheckRequest
		code     messages.ErrorCode
	}{
		{
			scenario: "empty asset without object id is a bad request",
			req:      messages.PlacementCheckRequest{RequestID: 1},
			code:     messages.ErrorCodeBadRequest,
		},
		{
			scenario: "unknown asset is not found",
			req: messages.PlacementCheckRequest{
				RequestID: 2,
				Asset:     messages.AssetRef{Category: "missing", Name: "cube.glb"},
				Pose:      messages.Pose{RW: 1},
			},
			code: messages.ErrorCodeNotFound,
		},
		{
			scenario: "unknown object id is not found",
			req:      messages.PlacementCheckRequest{RequestID: 3, ObjectID: 42},
			code:     messages.ErrorCodeNotFound,
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			module := newTestModule()

			scene := models.NewScene(1, 15*time.Millisecond)
			defer scene.Close()
			module.Init(scene, &models.Participant{ID: 1})

			res, ok := checkPlacement(t, module, test.req).(messages.ErrorResponse)
			require.True(t, ok)
			require.Equal(t, test.req.RequestID, res.RequestID)
			require.Equal(t, test.code, res.Code)
		})
	}
}

func TestModulePlacementCheckBeforeJoin(t *testing.T) {
	module := newTestModule()

	var sender recordingSender
	err := module.HandleMsg(context.Background(), &sender, moduleMsg(t, messages.PlacementCheckRequest{
		Type:      messages.TypePlacementCheckRequest,
		Timestamp: time.Now(),
		RequestID: 1,
		Asset:     messages.AssetRef{Category: "buildings", Name: "cube.glb"},
	}))
	require.Error(t, err)
	require.True(t, errors.IsType(err, messages.ErrTypeSceneNotJoined))
	require.Empty(t, sender.all())
}

func TestModuleResyncOnObjectChanges(t *testing.T) {
	module := newTestModule()

	scene := models.NewScene(1, 15*time.Millisecond)
	defer scene.Close()
	module.Init(scene, &models.Participant{ID: 1})
	require.Zero(t, module.state.Index.Len())

	// the core handler placed an object, then the module sees the message:
	object := placeObject(scene, 1, "buildings", 0, 0, 0)
	err := module.HandleMsg(context.Background(), &recordingSender{}, moduleMsg(t, messages.ObjectAddRequest{
		Type:      messages.TypeObjectAddRequest,
		Timestamp: time.Now(),
		RequestID: 1,
		Asset:     messages.AssetRef{Category: "buildings", Name: "cube.glb"},
		Pose:      messages.Pose{RW: 1},
	}))
	require.NoError(t, err)
	require.Equal(t, 1, module.state.Index.Len())
	require.True(t, module.state.Index.Tracked(1))

	scene.RemoveObject(object)
	err = module.HandleMsg(context.Background(), &recordingSender{}, moduleMsg(t, messages.ObjectDeleteRequest{
		Type:      messages.TypeObjectDeleteRequest,
		Timestamp: time.Now(),
		RequestID: 2,
		ObjectID:  1,
	}))
	require.NoError(t, err)
	require.Zero(t, module.state.Index.Len())
}

func TestModuleResyncOnSnapshotRestore(t *testing.T) {
	module := newTestModule()

	scene := models.NewScene(1, 15*time.Millisecond)
	defer scene.Close()
	placeObject(scene, 1, "buildings", 0, 0, 0)

	module.Init(scene, &models.Participant{ID: 1})
	require.True(t, module.state.Index.Tracked(1))

	// the core handler replaced the object set with restored ids:
	restored := &models.SceneObject{
		ID:       7,
		AssetKey: models.AssetKey{Category: "trees", Name: "cube.glb"},
	}
	restored.SetPose(models.Pose{PX: 5, RW: 1})
	scene.ReplaceObjects([]*models.SceneObject{restored})

	err := module.HandleMsg(context.Background(), &recordingSender{}, moduleMsg(t, messages.SnapshotRestoreRequest{
		Type:       messages.TypeSnapshotRestoreRequest,
		Timestamp:  time.Now(),
		RequestID:  1,
		SnapshotID: "d2c1e3a4",
	}))
	require.NoError(t, err)
	require.Equal(t, 1, module.state.Index.Len())
	require.False(t, module.state.Index.Tracked(1))
	require.True(t, module.state.Index.Tracked(7))
}

func TestModuleResyncSkipsUnloadableObjects(t *testing.T) {
	module := newTestModule()

	scene := models.NewScene(1, 15*time.Millisecond)
	defer scene.Close()
	placeObject(scene, 1, "buildings", 0, 0, 0)
	placeObject(scene, 2, "missing", 10, 0, 0)

	module.Init(scene, &models.Participant{ID: 1})
	require.Equal(t, 1, module.state.Index.Len())
	require.True(t, module.state.Index.Tracked(1))
	require.False(t, module.state.Index.Tracked(2))
}

func TestModulePlacementDebug(t *testing.T) {
	module := newTestModule()

	scene := models.NewScene(1, 15*time.Millisecond)
	defer scene.Close()
	placeObject(scene, 1, "buildings", 0, 0, 0)

	module.Init(scene, &models.Participant{ID: 1})

	var sender recordingSender
	err := module.HandleMsg(context.Background(), &sender, moduleMsg(t, messages.PlacementDebugRequest{
		Type:      messages.TypePlacementDebugRequest,
		Timestamp: time.Now(),
		RequestID: 1,
	}))
	require.NoError(t, err)

	sent := sender.all()
	require.Len(t, sent, 1)
	res, ok := sent[0].(messages.PlacementDebugResponse)
	require.True(t, ok)
	require.EqualValues(t, 1, res.RequestID)
	require.Equal(t, 1, res.Index.TrackedObjects)
	require.True(t, res.Index.Accelerated)
	require.Equal(t, 1, res.Grid.Objects)
	require.NotZero(t, res.Grid.Cells)
}

func TestModuleDisconnect(t *testing.T) {
	module := newTestModule()

	scene := models.NewScene(1, 15*time.Millisecond)
	defer scene.Close()
	participant := &models.Participant{ID: 1}

	kept := placeObject(scene, 1, "buildings", 0, 0, 0)
	kept.Persist = true
	gone := placeObject(scene, 2, "buildings", 10, 0, 0)
	participant.AddObject(kept)
	participant.AddObject(gone)

	module.Init(scene, participant)
	require.Equal(t, 2, module.state.Index.Len())

	module.HandleDisconnect()
	require.True(t, module.state.Index.Tracked(1))
	require.False(t, module.state.Index.Tracked(2))
}

func TestModuleSkipsUnknownMsg(t *testing.T) {
	module := newTestModule()

	err := module.HandleMsg(context.Background(), &recordingSender{}, moduleMsg(t, messages.SyncClock{
		Type:      messages.TypeSyncClock,
		Timestamp: time.Now(),
	}))
	require.True(t, errors.IsType(err, messages.ErrTypeMsgSkip))
}
