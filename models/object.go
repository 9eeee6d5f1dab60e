package models

import (
	"sync"

	"github.com/aukilabs/garth/collision"
	"github.com/aukilabs/garth/messages"
)

// SceneObject is one placed asset instance.
type SceneObject struct {
	ID            uint32
	ParticipantID uint32
	Persist       bool
	AssetKey      AssetKey

	mutex sync.RWMutex
	pose  Pose
}

func (o *SceneObject) SetPose(v Pose) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.pose = v
}

func (o *SceneObject) Pose() Pose {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return o.pose
}

func (o *SceneObject) ToMessage() messages.Object {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return messages.Object{
		ID:            o.ID,
		ParticipantID: o.ParticipantID,
		Asset:         o.AssetKey.ToMessage(),
		Pose:          o.pose.ToMessage(),
		Persist:       o.Persist,
	}
}

func ObjectsToMessage(objects []*SceneObject) []messages.Object {
	res := make([]messages.Object, len(objects))
	for i, o := range objects {
		res[i] = o.ToMessage()
	}
	return res
}

// Pose is a position and a rotation in scene space.
type Pose struct {
	PX float32
	PY float32
	PZ float32
	RX float32
	RY float32
	RZ float32
	RW float32
}

func (p Pose) ToMessage() messages.Pose {
	return messages.Pose{
		PX: p.PX,
		PY: p.PY,
		PZ: p.PZ,
		RX: p.RX,
		RY: p.RY,
		RZ: p.RZ,
		RW: p.RW,
	}
}

func PoseFromMessage(mp messages.Pose) Pose {
	return Pose{
		PX: mp.PX,
		PY: mp.PY,
		PZ: mp.PZ,
		RX: mp.RX,
		RY: mp.RY,
		RZ: mp.RZ,
		RW: mp.RW,
	}
}

// Transform converts the pose for volume math.
func (p Pose) Transform() collision.Transform {
	return collision.Transform{
		Translation: collision.Vector3f{X: p.PX, Y: p.PY, Z: p.PZ},
		Rotation:    collision.Quaternion{X: p.RX, Y: p.RY, Z: p.RZ, W: p.RW},
	}
}
