// Package raido is the placement module. It mirrors the scene's objects into
// a collision index and answers placement checks against it.
package raido

import (
	"context"
	"time"

	"github.com/aukilabs/garth/assetcache"
	"github.com/aukilabs/garth/collision"
	"github.com/aukilabs/garth/messages"
	"github.com/aukilabs/garth/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

type Module struct {
	// The loader shared by every connection, used to resolve template bounds.
	Loader *assetcache.Loader

	// The process wide generator for load identities.
	IDs *models.SequentialIDGenerator

	// Categories that never block a placement.
	NonBlocking []string

	// Grid cell edge length, zero means collision.DefaultCellSize.
	CellSize float32

	currentScene       *models.Scene
	currentParticipant *models.Participant
	state              *State
}

func (m *Module) Name() string {
	return "raido"
}

func (m *Module) Init(s *models.Scene, p *models.Participant) {
	m.currentScene = s
	m.currentParticipant = p

	state, ok := s.ModuleState(m.Name())
	if !ok {
		state = NewState(m.CellSize, m.NonBlocking)
		s.SetModuleState(m.Name(), state)
	}
	m.state = state.(*State)

	m.resync()
}

func (m *Module) HandleMsg(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var err error

	switch msg.Type {
	case messages.TypeObjectAddRequest,
		messages.TypeObjectDeleteRequest,
		messages.TypeSnapshotRestoreRequest:
		err = m.handleObjectsChanged(ctx, respond, msg)

	case messages.TypeObjectMove:
		err = m.handleObjectMove(ctx, respond, msg)

	case messages.TypePlacementCheckRequest:
		err = m.handlePlacementCheck(ctx, respond, msg)

	case messages.TypePlacementDebugRequest:
		err = m.handlePlacementDebug(ctx, respond, msg)

	default:
		err = messages.ErrModuleMsgSkip
	}

	return err
}

func (m *Module) HandleDisconnect() {
	participant := m.currentParticipant
	if participant == nil {
		return
	}

	for objectID := range participant.ObjectIDs() {
		if object, ok := m.currentScene.ObjectByID(objectID); !ok || !object.Persist {
			m.state.Index.Unregister(objectID)
		}
	}
}

// handleObjectsChanged reconciles the index after the core handler changed
// the scene's object set.
func (m *Module) handleObjectsChanged(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	m.resync()
	return nil
}

func (m *Module) handleObjectMove(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.ObjectMove
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	m.state.Index.Invalidate(req.ObjectID)
	return nil
}

func (m *Module) handlePlacementCheck(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.PlacementCheckRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	scene := m.currentScene
	participant := m.currentParticipant
	if scene == nil || participant == nil {
		return errors.New("scene not joined").
			WithType(messages.ErrTypeSceneNotJoined).
			WithTag("msg_type", msg.Type)
	}

	var candidate collision.Volume
	var excludeID uint32

	if req.ObjectID == 0 {
		// Hypothetical placement of an asset at the requested pose. The probe
		// is never registered, the query scans locally.
		if req.Asset.Category == "" || req.Asset.Name == "" {
			respond.Send(messages.ErrorResponse{
				Type:      messages.TypeError,
				Timestamp: time.Now(),
				RequestID: req.RequestID,
				Code:      messages.ErrorCodeBadRequest,
			})
			return nil
		}

		template, err := m.loadTemplate(ctx, models.AssetKeyFromMessage(req.Asset))
		if err != nil {
			respond.Send(messages.ErrorResponse{
				Type:      messages.TypeError,
				Timestamp: time.Now(),
				RequestID: req.RequestID,
				Code:      loadErrorCode(err),
			})
			return nil
		}

		candidate = template.Bounds.Transformed(models.PoseFromMessage(req.Pose).Transform())
	} else {
		// Revalidation of a placed object at its current pose.
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

		template, err := m.loadTemplate(ctx, object.AssetKey)
		if err != nil {
			respond.Send(messages.ErrorResponse{
				Type:      messages.TypeError,
				Timestamp: time.Now(),
				RequestID: req.RequestID,
				Code:      loadErrorCode(err),
			})
			return nil
		}

		candidate = template.Bounds.Transformed(object.Pose().Transform())
		excludeID = object.ID
	}

	collidingID, collides := m.state.Validator.Conflict(candidate, excludeID)

	respond.Send(messages.PlacementCheckResponse{
		Type:              messages.TypePlacementCheckResponse,
		Timestamp:         time.Now(),
		RequestID:         req.RequestID,
		Valid:             !collides,
		CollidingObjectID: collidingID,
	})
	return nil
}

func (m *Module) handlePlacementDebug(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.PlacementDebugRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	scene := m.currentScene
	participant := m.currentParticipant
	if scene == nil || participant == nil {
		return errors.New("scene not joined").
			WithType(messages.ErrTypeSceneNotJoined).
			WithTag("msg_type", msg.Type)
	}

	respond.Send(messages.PlacementDebugResponse{
		Type:      messages.TypePlacementDebugResponse,
		Timestamp: time.Now(),
		RequestID: req.RequestID,
		Index:     m.state.Index.Stats(),
		Grid:      m.state.Grid.Stats(),
	})
	return nil
}

// resync reconciles the index with the scene's object set. Objects whose
// template cannot be loaded stay untracked until a later resync.
func (m *Module) resync() {
	scene := m.currentScene
	if scene == nil {
		return
	}

	index := m.state.Index

	objects := scene.Objects()
	present := make(map[uint32]struct{}, len(objects))
	for _, object := range objects {
		present[object.ID] = struct{}{}
	}

	for _, id := range index.TrackedIDs() {
		if _, ok := present[id]; !ok {
			index.Unregister(id)
		}
	}

	for _, object := range objects {
		if index.Tracked(object.ID) {
			continue
		}
		m.register(object)
	}
}

// register tracks one object. The template bounds are loaded once, the
// volume source re-reads the live pose on every index rebuild.
func (m *Module) register(object *models.SceneObject) {
	template, err := m.loadTemplate(context.Background(), object.AssetKey)
	if err != nil {
		logs.WithTag("object_id", object.ID).
			WithTag("asset", object.AssetKey.ID()).
			Warn(errors.New("loading template for collision tracking failed").Wrap(err))
		return
	}

	bounds := template.Bounds
	m.state.Index.Register(object.ID, object.AssetKey.Category, func() collision.Volume {
		return bounds.Transformed(object.Pose().Transform())
	})
}

// loadTemplate resolves a template under a scratch identity so it can never
// supersede a participant's in-flight resolve.
func (m *Module) loadTemplate(ctx context.Context, key models.AssetKey) (*models.AssetTemplate, error) {
	identity := m.IDs.New()
	defer m.IDs.Reuse(identity)

	return m.Loader.Load(ctx, key, identity)
}

// loadErrorCode maps loader failures to wire error codes.
func loadErrorCode(err error) messages.ErrorCode {
	switch {
	case errors.IsType(err, assetcache.ErrTypeNotFound):
		return messages.ErrorCodeNotFound
	case errors.IsType(err, assetcache.ErrTypeCanceled):
		return messages.ErrorCodeCanceled
	default:
		return messages.ErrorCodeInternal
	}
}
