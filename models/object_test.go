package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSceneObjectPose(t *testing.T) {
	object := &SceneObject{ID: 1}
	require.Zero(t, object.Pose())

	pose := Pose{PX: 1, PY: 2, PZ: 3, RW: 1}
	object.SetPose(pose)
	require.Equal(t, pose, object.Pose())
}

func TestSceneObjectToMessage(t *testing.T) {
	object := &SceneObject{
		ID:            7,
		ParticipantID: 3,
		Persist:       true,
		AssetKey:      AssetKey{Category: "trees", Name: "oak.glb"},
	}
	object.SetPose(Pose{PX: 1.5, PZ: -2, RW: 1})

	msg := object.ToMessage()
	require.Equal(t, uint32(7), msg.ID)
	require.Equal(t, uint32(3), msg.ParticipantID)
	require.True(t, msg.Persist)
	require.Equal(t, "trees", msg.Asset.Category)
	require.Equal(t, "oak.glb", msg.Asset.Name)
	require.Equal(t, float32(1.5), msg.Pose.PX)
	require.Equal(t, float32(-2), msg.Pose.PZ)
	require.Equal(t, float32(1), msg.Pose.RW)
}

func TestObjectsToMessage(t *testing.T) {
	objects := []*SceneObject{
		{ID: 1},
		{ID: 2},
	}

	msgs := ObjectsToMessage(objects)
	require.Len(t, msgs, 2)
	require.Equal(t, uint32(1), msgs[0].ID)
	require.Equal(t, uint32(2), msgs[1].ID)
}

func TestPoseRoundTrip(t *testing.T) {
	pose := Pose{PX: 1, PY: 2, PZ: 3, RX: 0.5, RY: 0.5, RZ: 0.5, RW: 0.5}
	require.Equal(t, pose, PoseFromMessage(pose.ToMessage()))
}

func TestPoseTransform(t *testing.T) {
	pose := Pose{PX: 1, PY: 2, PZ: 3, RW: 1}

	transform := pose.Transform()
	require.Equal(t, float32(1), transform.Translation.X)
	require.Equal(t, float32(2), transform.Translation.Y)
	require.Equal(t, float32(3), transform.Translation.Z)
	require.Equal(t, float32(1), transform.Rotation.W)
}
