package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/garth/messages"
	"github.com/aukilabs/garth/models"
	"github.com/aukilabs/garth/modules"
	"github.com/stretchr/testify/require"
)

type testModule struct {
	currentScene       *models.Scene
	currentParticipant *models.Participant
	handledMsgs        []messages.Type
	skippedMsgs        []messages.Type
	onDisconnect       func()
}

func (m *testModule) Name() string {
	return "test-module"
}

func (m *testModule) Init(s *models.Scene, p *models.Participant) {
	m.currentScene = s
	m.currentParticipant = p
}

func (m *testModule) HandleMsg(ctx context.Context, sender messages.ResponseSender, msg messages.Msg) error {
	switch msg.Type {
	case messages.TypeObjectAddRequest:
		m.skippedMsgs = append(m.skippedMsgs, msg.Type)
		return messages.ErrModuleMsgSkip

	default:
		m.handledMsgs = append(m.handledMsgs, msg.Type)
		return nil
	}
}

func (m *testModule) HandleDisconnect() {
	if m.onDisconnect != nil {
		m.onDisconnect()
	}
}

func TestModule(t *testing.T) {
	var wg sync.WaitGroup
	var modA *testModule

	clientA, _, close := NewTestingEnv(t, newTestHandler(t, func() modules.Module {
		if modA == nil {
			wg.Add(1)
			modA = &testModule{
				onDisconnect: func() {
					wg.Done()
				},
			}
		}
		return modA
	}))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*100)
	defer cancel()

	err := NewScenario(clientA).
		Send(func() messages.Message {
			return messages.SceneJoinRequest{
				Type:      messages.TypeSceneJoinRequest,
				Timestamp: time.Now(),
				RequestID: 1,
			}
		}).
		Receive(nil,
			FilterByRequestID(1),
			FilterByType(messages.TypeSceneJoinResponse),
		).
		Receive(nil,
			FilterByType(messages.TypeSceneState),
		).
		Send(func() messages.Message {
			return messages.ObjectAddRequest{
				Type:      messages.TypeObjectAddRequest,
				Timestamp: time.Now(),
				RequestID: 2,
				Asset:     messages.AssetRef{Category: "furniture", Name: "chair.glb"},
			}
		}).
		Receive(nil,
			FilterByRequestID(2),
			FilterByType(messages.TypeObjectAddResponse),
		).
		Run(ctx)
	require.NoError(t, err)

	clientA.Close()

	wg.Wait()
	require.NotNil(t, modA.currentScene)
	require.NotNil(t, modA.currentParticipant)
	require.Len(t, modA.handledMsgs, 1)
	require.Equal(t, messages.TypeSceneJoinRequest, modA.handledMsgs[0])
	require.Len(t, modA.skippedMsgs, 1)
	require.Equal(t, messages.TypeObjectAddRequest, modA.skippedMsgs[0])
}
