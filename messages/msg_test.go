package messages

import (
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func TestMsgFromMessage(t *testing.T) {
	msg, err := MsgFromMessage(ObjectAddRequest{
		Type:      TypeObjectAddRequest,
		Timestamp: time.Now(),
		RequestID: 7,
		Asset:     AssetRef{Category: "props", Name: "piano.glb"},
		Pose:      Pose{PX: 1, PZ: -3, RW: 1},
		Persist:   true,
	})
	require.NoError(t, err)
	require.Equal(t, TypeObjectAddRequest, msg.Type)
	require.False(t, msg.Time.IsZero())

	// the wire document carries the routing type itself:
	var peek struct {
		Type Type `json:"type"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &peek))
	require.Equal(t, TypeObjectAddRequest, peek.Type)

	var req ObjectAddRequest
	require.NoError(t, msg.DataTo(&req))
	require.EqualValues(t, 7, req.RequestID)
	require.Equal(t, "piano.glb", req.Asset.Name)
	require.True(t, req.Persist)
}

func TestMsgDataTo(t *testing.T) {
	msg := Msg{Type: TypeSceneJoinRequest, Data: []byte(`{not json`)}

	var req SceneJoinRequest
	require.Error(t, msg.DataTo(&req))
}

func TestErrModuleMsgSkip(t *testing.T) {
	require.True(t, errors.IsType(ErrModuleMsgSkip, ErrTypeMsgSkip))
}
