package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/garth/featureflag"
	"github.com/aukilabs/garth/messages"
	"github.com/aukilabs/garth/models"
	"github.com/aukilabs/garth/modules"
	"github.com/aukilabs/garth/snapshot"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// RealtimeHandler represents a service that manages multiple client
// connections and relays their scene edits in realtime.
type RealtimeHandler struct {
	// The interval between each sync clock message sent to the connected
	// client.
	ClientSyncClockInterval time.Duration

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The duration of a frame.
	FrameDuration time.Duration

	// The store that contains all the server scenes.
	Scenes *models.SceneStore

	// The modules that expand garth features.
	Modules []modules.Module

	FeatureFlags featureflag.FeatureFlag

	// The store that reads back saved snapshots.
	Snapshots *snapshot.Store

	// channel for sending snapshots to the snapshot handler goroutine
	SnapshotChan chan snapshot.Snapshot

	conn               *websocket.Conn
	currentScene       *models.Scene
	currentParticipant *models.Participant

	stopFrameHandling func()

	clientID string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	h.clientID = uuid.NewString()
	h.conn = conn
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.PingRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	respond.Send(messages.PingResponse{
		Type:      messages.TypePingResponse,
		Timestamp: time.Now(),
		RequestID: req.RequestID,
	})
	return nil
}

func (h *RealtimeHandler) HandleSceneJoin(ctx context.Context, handleFrame func(), respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.SceneJoinRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if h.currentScene != nil && h.Scenes.GlobalID(h.currentScene.ID) == req.SceneID {
		respond.Send(messages.ErrorResponse{
			Type:      messages.TypeError,
			Timestamp: time.Now(),
			RequestID: req.RequestID,
			Code:      messages.ErrorCodeSceneAlreadyJoined,
		})
		return nil
	}

	if h.currentParticipant != nil {
		h.leaveScene()
	}

	scene, ok := h.Scenes.GetByGlobalID(req.SceneID)
	if !ok && req.SceneID != "" {
		respond.Send(messages.ErrorResponse{
			Type:      messages.TypeError,
			Timestamp: time.Now(),
			RequestID: req.RequestID,
			Code:      messages.ErrorCodeNotFound,
		})
		return nil
	}

	if !ok {
		scene = models.NewScene(h.Scenes.NewID(), h.FrameDuration)
		h.Scenes.Add(scene)
		go scene.StartDispatchFrames()
	}

	participant := &models.Participant{
		ID:        scene.NewParticipantID(),
		Responder: respond,
	}

	scene.AddParticipant(participant)
	h.stopFrameHandling = scene.HandleFrame(handleFrame)

	respond.Send(messages.SceneJoinResponse{
		Type:          messages.TypeSceneJoinResponse,
		Timestamp:     time.Now(),
		RequestID:     req.RequestID,
		SceneID:       h.Scenes.GlobalID(scene.ID),
		SceneUUID:     scene.UUID,
		ParticipantID: participant.ID,
	})

	h.currentScene = scene
	h.currentParticipant = participant

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableSceneState, func() {
		respond.Send(messages.SceneState{
			Type:           messages.TypeSceneState,
			Timestamp:      time.Now(),
			ParticipantIDs: scene.ParticipantIDs(),
			Objects:        models.ObjectsToMessage(scene.Objects()),
		})
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableParticipantJoinBroadcast, func() {
		scene.Broadcast(participant, messages.ParticipantJoinBroadcast{
			Type:            messages.TypeParticipantJoinBroadcast,
			Timestamp:       time.Now(),
			OriginTimestamp: req.Timestamp,
			ParticipantID:   participant.ID,
		})
	})

	for _, m := range h.Modules {
		m.Init(scene, participant)
	}

	return nil
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
	if h.currentParticipant != nil {
		h.leaveScene()
	}
}

func (h *RealtimeHandler) HandleObjectAdd(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.ObjectAddRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant := h.currentParticipant
	scene := h.currentScene
	if participant == nil || scene == nil {
		return errors.New("scene not joined").
			WithType(messages.ErrTypeSceneNotJoined).
			WithTag("msg_type", msg.Type)
	}

	if req.Asset.Category == "" || req.Asset.Name == "" {
		respond.Send(messages.ErrorResponse{
			Type:      messages.TypeError,
			Timestamp: time.Now(),
			RequestID: req.RequestID,
			Code:      messages.ErrorCodeBadRequest,
		})
		return nil
	}

	object := &models.SceneObject{
		ID:            scene.NewObjectID(),
		ParticipantID: participant.ID,
		Persist:       req.Persist,
		AssetKey:      models.AssetKeyFromMessage(req.Asset),
	}
	object.SetPose(models.PoseFromMessage(req.Pose))

	scene.AddObject(object)
	participant.AddObject(object)

	now := time.Now()

	respond.Send(messages.ObjectAddResponse{
		Type:      messages.TypeObjectAddResponse,
		Timestamp: now,
		RequestID: req.RequestID,
		ObjectID:  object.ID,
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableObjectAddBroadcast, func() {
		scene.Broadcast(participant, messages.ObjectAddBroadcast{
			Type:            messages.TypeObjectAddBroadcast,
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			Object:          object.ToMessage(),
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleObjectDelete(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.ObjectDeleteRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant := h.currentParticipant
	scene := h.currentScene
	if participant == nil || scene == nil {
		return errors.New("scene not joined").
			WithType(messages.ErrTypeSceneNotJoined).
			WithTag("msg_type", msg.Type)
	}

	object, ok := scene.ObjectByID(req.ObjectID)
	if !ok {
		respond.Send(messages.ErrorResponse{
			Type:      messages.TypeError,
			Timestamp: time.Now(),
			RequestID: req.RequestID,
			Code:      messages.ErrorCodeNotFound,
		})
		return nil
	}

	if object.ParticipantID != participant.ID {
		respond.Send(messages.ErrorResponse{
			Type:      messages.TypeError,
			Timestamp: time.Now(),
			RequestID: req.RequestID,
			Code:      messages.ErrorCodeUnauthorized,
		})
		return nil
	}

	now := time.Now()

	scene.RemoveObject(object)
	participant.RemoveObject(object)

	respond.Send(messages.ObjectDeleteResponse{
		Type:      messages.TypeObjectDeleteResponse,
		Timestamp: now,
		RequestID: req.RequestID,
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableObjectDeleteBroadcast, func() {
		scene.Broadcast(participant, messages.ObjectDeleteBroadcast{
			Type:            messages.TypeObjectDeleteBroadcast,
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			ObjectID:        object.ID,
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleObjectMove(ctx context.Context, msg messages.Msg) error {
	var move messages.ObjectMove
	if err := msg.DataTo(&move); err != nil {
		return err
	}

	participant := h.currentParticipant
	scene := h.currentScene
	if participant == nil || scene == nil {
		return errors.New("scene not joined").
			WithType(messages.ErrTypeSceneNotJoined).
			WithTag("msg_type", msg.Type)
	}

	object, ok := scene.ObjectByID(move.ObjectID)
	if !ok {
		return nil
	}

	if object.ParticipantID != participant.ID {
		return nil
	}

	object.SetPose(models.PoseFromMessage(move.Pose))

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableObjectMoveBroadcast, func() {
		scene.Broadcast(participant, messages.ObjectMoveBroadcast{
			Type:      messages.TypeObjectMoveBroadcast,
			Timestamp: time.Now(),
			ObjectID:  object.ID,
			Pose:      object.Pose().ToMessage(),
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleSnapshotSave(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.SnapshotSaveRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant := h.currentParticipant
	scene := h.currentScene
	if participant == nil || scene == nil {
		return errors.New("scene not joined").
			WithType(messages.ErrTypeSceneNotJoined).
			WithTag("msg_type", msg.Type)
	}

	objects := models.ObjectsToMessage(scene.Objects())

	doc := snapshot.Snapshot{
		ID:        uuid.NewString(),
		SceneID:   h.Scenes.GlobalID(scene.ID),
		SceneUUID: scene.UUID,
		SavedAt:   time.Now(),
		Objects:   objects,
	}

	select {
	case h.SnapshotChan <- doc:
		respond.Send(messages.SnapshotSaveResponse{
			Type:        messages.TypeSnapshotSaveResponse,
			Timestamp:   time.Now(),
			RequestID:   req.RequestID,
			SnapshotID:  doc.ID,
			ObjectCount: len(objects),
		})
	default:
		// discard, failsafe if the disk writer cannot keep up
		respond.Send(messages.ErrorResponse{
			Type:      messages.TypeError,
			Timestamp: time.Now(),
			RequestID: req.RequestID,
			Code:      messages.ErrorCodeTooBusy,
		})
		return errors.New("snapshot channel full")
	}

	return nil
}

func (h *RealtimeHandler) HandleSnapshotRestore(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.SnapshotRestoreRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant := h.currentParticipant
	scene := h.currentScene
	if participant == nil || scene == nil {
		return errors.New("scene not joined").
			WithType(messages.ErrTypeSceneNotJoined).
			WithTag("msg_type", msg.Type)
	}

	doc, err := h.Snapshots.Load(req.SnapshotID)
	if err != nil {
		code := messages.ErrorCodeInternal
		if errors.IsType(err, snapshot.ErrTypeNotFound) {
			code = messages.ErrorCodeNotFound
		}
		respond.Send(messages.ErrorResponse{
			Type:      messages.TypeError,
			Timestamp: time.Now(),
			RequestID: req.RequestID,
			Code:      code,
		})
		return nil
	}

	// Restored objects get fresh ids and belong to the restoring
	// participant. Snapshot ids may collide with live ones and the original
	// owners are not in the scene anymore.
	objects := make([]*models.SceneObject, len(doc.Objects))
	for i, o := range doc.Objects {
		object := &models.SceneObject{
			ID:            scene.NewObjectID(),
			ParticipantID: participant.ID,
			Persist:       o.Persist,
			AssetKey:      models.AssetKeyFromMessage(o.Asset),
		}
		object.SetPose(models.PoseFromMessage(o.Pose))

		objects[i] = object
		participant.AddObject(object)
	}

	scene.ReplaceObjects(objects)

	now := time.Now()

	respond.Send(messages.SnapshotRestoreResponse{
		Type:        messages.TypeSnapshotRestoreResponse,
		Timestamp:   now,
		RequestID:   req.RequestID,
		ObjectCount: len(objects),
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableSceneState, func() {
		state := messages.SceneState{
			Type:           messages.TypeSceneState,
			Timestamp:      now,
			ParticipantIDs: scene.ParticipantIDs(),
			Objects:        models.ObjectsToMessage(scene.Objects()),
		}

		respond.Send(state)
		scene.Broadcast(participant, state)
	})

	return nil
}

func (h *RealtimeHandler) HandleWithModule(ctx context.Context, m modules.Module, respond messages.ResponseSender, msg messages.Msg) error {
	if h.CurrentParticipant() == nil || h.CurrentScene() == nil {
		return nil
	}

	err := m.HandleMsg(ctx, respond, msg)
	if errors.IsType(err, messages.ErrTypeMsgSkip) {
		return nil
	}
	if err != nil {
		return errors.New("handling message with module failed").
			WithTag("module", m.Name()).
			Wrap(err)
	}
	return nil
}

func (h *RealtimeHandler) SendSyncClock(ctx context.Context, respond messages.ResponseSender) error {
	respond.Send(messages.SyncClock{
		Type:      messages.TypeSyncClock,
		Timestamp: time.Now(),
	})
	return nil
}

func (h *RealtimeHandler) Receiver() messages.Receiver {
	return func() (messages.Msg, int, error) {
		return messages.Receive(h.conn)
	}
}

func (h *RealtimeHandler) Sender() messages.Sender {
	return func(msg messages.Msg) (int, error) {
		return messages.Send(h.conn, msg)
	}
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) SyncClockInterval() time.Duration {
	return h.ClientSyncClockInterval
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetScenes() *models.SceneStore {
	return h.Scenes
}

func (h *RealtimeHandler) GetModules() []modules.Module {
	return h.Modules
}

func (h *RealtimeHandler) CurrentScene() *models.Scene {
	return h.currentScene
}

func (h *RealtimeHandler) CurrentParticipant() *models.Participant {
	return h.currentParticipant
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}

func (h *RealtimeHandler) leaveScene() {
	scene := h.currentScene
	participant := h.currentParticipant

	if participant == nil || scene == nil {
		return
	}

	for _, m := range h.Modules {
		m.HandleDisconnect()
	}

	now := time.Now()

	for id := range participant.ObjectIDs() {
		object, ok := scene.ObjectByID(id)
		if !ok || object.Persist {
			continue
		}

		scene.RemoveObject(object)

		h.FeatureFlags.IfNotSet(featureflag.FlagDisableObjectDeleteBroadcast, func() {
			scene.Broadcast(participant, messages.ObjectDeleteBroadcast{
				Type:            messages.TypeObjectDeleteBroadcast,
				Timestamp:       now,
				OriginTimestamp: now,
				ObjectID:        object.ID,
			})
		})
	}

	if h.stopFrameHandling != nil {
		h.stopFrameHandling()
	}
	scene.RemoveParticipant(participant)

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableParticipantLeaveBroadcast, func() {
		scene.Broadcast(participant, messages.ParticipantLeaveBroadcast{
			Type:            messages.TypeParticipantLeaveBroadcast,
			Timestamp:       now,
			OriginTimestamp: now,
			ParticipantID:   participant.ID,
		})
	})

	if scene.ParticipantCount() == 0 {
		h.Scenes.Remove(scene)
	}

	h.currentParticipant = nil
	h.currentScene = nil
}
