// Package fehu is the asset resolution module. It resolves catalog assets
// into parsed templates through the shared loader and answers with template
// metadata, leaving payload delivery to the HTTP asset endpoint.
package fehu

import (
	"context"
	"time"

	"github.com/aukilabs/garth/assetcache"
	"github.com/aukilabs/garth/featureflag"
	"github.com/aukilabs/garth/messages"
	"github.com/aukilabs/garth/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

type Module struct {
	// The loader shared by every connection.
	Loader *assetcache.Loader

	// The process wide generator for load identities.
	IDs *models.SequentialIDGenerator

	FeatureFlags featureflag.FeatureFlag

	currentScene       *models.Scene
	currentParticipant *models.Participant
	state              *State
	identity           uint32
}

func (m *Module) Name() string {
	return "fehu"
}

func (m *Module) Init(s *models.Scene, p *models.Participant) {
	m.currentScene = s
	m.currentParticipant = p

	state, ok := s.ModuleState(m.Name())
	if !ok {
		state = &State{}
		s.SetModuleState(m.Name(), state)
	}
	m.state = state.(*State)

	if m.identity == 0 {
		m.identity = m.IDs.New()
	}

	m.maybePrefetch()
}

func (m *Module) HandleMsg(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var err error

	switch msg.Type {
	case messages.TypeAssetResolveRequest:
		err = m.handleResolve(ctx, respond, msg)

	case messages.TypeAssetCancelRequest:
		err = m.handleCancel(ctx, respond, msg)

	case messages.TypeAssetStatsRequest:
		err = m.handleStats(ctx, respond, msg)

	case messages.TypeSnapshotRestoreRequest:
		err = m.handleSnapshotRestore(ctx, respond, msg)

	default:
		err = messages.ErrModuleMsgSkip
	}

	return err
}

func (m *Module) HandleDisconnect() {
	if m.identity == 0 {
		return
	}

	m.Loader.Cancel(m.identity)
	m.IDs.Reuse(m.identity)
	m.identity = 0
}

func (m *Module) handleResolve(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.AssetResolveRequest
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

	if req.Asset.Category == "" || req.Asset.Name == "" {
		respond.Send(messages.ErrorResponse{
			Type:      messages.TypeError,
			Timestamp: time.Now(),
			RequestID: req.RequestID,
			Code:      messages.ErrorCodeBadRequest,
		})
		return nil
	}

	template, err := m.Loader.Load(ctx, models.AssetKeyFromMessage(req.Asset), m.identity)
	if err != nil {
		respond.Send(messages.ErrorResponse{
			Type:      messages.TypeError,
			Timestamp: time.Now(),
			RequestID: req.RequestID,
			Code:      resolveErrorCode(err),
		})
		return nil
	}

	respond.Send(messages.AssetResolveResponse{
		Type:        messages.TypeAssetResolveResponse,
		Timestamp:   time.Now(),
		RequestID:   req.RequestID,
		Asset:       template.Key.ToMessage(),
		Format:      template.Format,
		PayloadSize: template.Size(),
		Bounds:      models.VolumeToMessage(template.Bounds),
		MeshCount:   template.MeshCount,
		NodeCount:   template.NodeCount,
	})
	return nil
}

func (m *Module) handleCancel(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.AssetCancelRequest
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

	respond.Send(messages.AssetCancelResponse{
		Type:      messages.TypeAssetCancelResponse,
		Timestamp: time.Now(),
		RequestID: req.RequestID,
		Canceled:  m.Loader.Cancel(m.identity),
	})
	return nil
}

func (m *Module) handleStats(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.AssetStatsRequest
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

	respond.Send(messages.AssetStatsResponse{
		Type:      messages.TypeAssetStatsResponse,
		Timestamp: time.Now(),
		RequestID: req.RequestID,
		Stats:     loaderStatsToMessage(m.Loader.Stats()),
	})
	return nil
}

// handleSnapshotRestore retriggers the scene prefetch. A restore is the
// moment a scene gains objects in bulk, the core handler has already
// replaced them when the module sees the message.
func (m *Module) handleSnapshotRestore(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	m.maybePrefetch()
	return nil
}

// maybePrefetch starts the scene prefetch when the scene has assets and no
// prefetch ran yet. The first join of an empty scene does not consume it.
func (m *Module) maybePrefetch() {
	m.FeatureFlags.IfNotSet(featureflag.FlagDisableAssetPrefetch, func() {
		scene := m.currentScene
		if scene == nil {
			return
		}

		keys := scene.DistinctAssetKeys()
		if len(keys) == 0 {
			return
		}
		if !m.state.StartPrefetch() {
			return
		}

		go m.prefetch(keys, m.IDs.New())
	})
}

// prefetch warms the cache with the assets already placed in the scene. It
// runs with its own load identity so it can never supersede a participant's
// in-flight resolve.
func (m *Module) prefetch(keys []models.AssetKey, identity uint32) {
	defer m.IDs.Reuse(identity)

	loaded := 0
	for _, key := range keys {
		if _, err := m.Loader.Load(context.Background(), key, identity); err != nil {
			logs.WithTag("asset", key.ID()).Warn(err)
			continue
		}
		loaded++
	}

	logs.WithTag("assets", len(keys)).
		WithTag("loaded", loaded).
		Debug("scene asset prefetch done")
}

// resolveErrorCode maps loader failures to wire error codes.
func resolveErrorCode(err error) messages.ErrorCode {
	switch {
	case errors.IsType(err, assetcache.ErrTypeNotFound):
		return messages.ErrorCodeNotFound
	case errors.IsType(err, assetcache.ErrTypeCanceled):
		return messages.ErrorCodeCanceled
	default:
		return messages.ErrorCodeInternal
	}
}

func loaderStatsToMessage(s assetcache.Stats) messages.LoaderStats {
	return messages.LoaderStats{
		CacheLen:      s.CacheLen,
		CacheCapacity: s.CacheCapacity,
		InFlight:      s.InFlight,
		Present:       filterStatsToMessage(s.Present),
		Absent:        filterStatsToMessage(s.Absent),
	}
}

func filterStatsToMessage(s assetcache.FilterStats) messages.FilterStats {
	return messages.FilterStats{
		Adds:                       s.Adds,
		FillRatio:                  s.FillRatio,
		EstimatedFalsePositiveRate: s.EstimatedFalsePositiveRate,
	}
}
