package messages

import (
	"time"

	"github.com/aukilabs/garth/collision"
)

// Type routes a wire message to its handler.
type Type string

const (
	TypeError     Type = "error_response"
	TypeSyncClock Type = "sync_clock"

	TypePingRequest  Type = "ping_request"
	TypePingResponse Type = "ping_response"

	TypeSceneJoinRequest          Type = "scene_join_request"
	TypeSceneJoinResponse         Type = "scene_join_response"
	TypeSceneState                Type = "scene_state"
	TypeParticipantJoinBroadcast  Type = "participant_join_broadcast"
	TypeParticipantLeaveBroadcast Type = "participant_leave_broadcast"

	TypeObjectAddRequest      Type = "object_add_request"
	TypeObjectAddResponse     Type = "object_add_response"
	TypeObjectAddBroadcast    Type = "object_add_broadcast"
	TypeObjectDeleteRequest   Type = "object_delete_request"
	TypeObjectDeleteResponse  Type = "object_delete_response"
	TypeObjectDeleteBroadcast Type = "object_delete_broadcast"
	TypeObjectMove            Type = "object_move"
	TypeObjectMoveBroadcast   Type = "object_move_broadcast"

	TypeSnapshotSaveRequest     Type = "snapshot_save_request"
	TypeSnapshotSaveResponse    Type = "snapshot_save_response"
	TypeSnapshotRestoreRequest  Type = "snapshot_restore_request"
	TypeSnapshotRestoreResponse Type = "snapshot_restore_response"

	TypeAssetResolveRequest  Type = "fehu_asset_resolve_request"
	TypeAssetResolveResponse Type = "fehu_asset_resolve_response"
	TypeAssetCancelRequest   Type = "fehu_asset_cancel_request"
	TypeAssetCancelResponse  Type = "fehu_asset_cancel_response"
	TypeAssetStatsRequest    Type = "fehu_asset_stats_request"
	TypeAssetStatsResponse   Type = "fehu_asset_stats_response"

	TypePlacementCheckRequest  Type = "raido_placement_check_request"
	TypePlacementCheckResponse Type = "raido_placement_check_response"
	TypePlacementDebugRequest  Type = "raido_placement_debug_request"
	TypePlacementDebugResponse Type = "raido_placement_debug_response"
)

type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

type Volume struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

type Pose struct {
	PX float32 `json:"px"`
	PY float32 `json:"py"`
	PZ float32 `json:"pz"`
	RX float32 `json:"rx"`
	RY float32 `json:"ry"`
	RZ float32 `json:"rz"`
	RW float32 `json:"rw"`
}

// AssetRef identifies a catalog asset on the wire.
type AssetRef struct {
	Category string `json:"category"`
	Name     string `json:"name"`
}

// Object is the wire form of a placed scene object.
type Object struct {
	ID            uint32   `json:"id"`
	ParticipantID uint32   `json:"participant_id"`
	Asset         AssetRef `json:"asset"`
	Pose          Pose     `json:"pose"`
	Persist       bool     `json:"persist"`
}

type ErrorResponse struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id,omitempty"`
	Code      ErrorCode `json:"code"`
}

func (m ErrorResponse) MsgType() Type { return m.Type }

// SyncClock carries the server time so clients can estimate their offset.
type SyncClock struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func (m SyncClock) MsgType() Type { return m.Type }

type PingRequest struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
}

func (m PingRequest) MsgType() Type { return m.Type }

type PingResponse struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
}

func (m PingResponse) MsgType() Type { return m.Type }

// SceneJoinRequest joins an existing scene by its id, or a fresh scene when
// the id is empty.
type SceneJoinRequest struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
	SceneID   string    `json:"scene_id,omitempty"`
}

func (m SceneJoinRequest) MsgType() Type { return m.Type }

type SceneJoinResponse struct {
	Type          Type      `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     uint32    `json:"request_id"`
	SceneID       string    `json:"scene_id"`
	SceneUUID     string    `json:"scene_uuid"`
	ParticipantID uint32    `json:"participant_id"`
}

func (m SceneJoinResponse) MsgType() Type { return m.Type }

// SceneState carries the full scene content to a joining participant and
// after a snapshot restore.
type SceneState struct {
	Type           Type      `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	ParticipantIDs []uint32  `json:"participant_ids"`
	Objects        []Object  `json:"objects"`
}

func (m SceneState) MsgType() Type { return m.Type }

type ParticipantJoinBroadcast struct {
	Type            Type      `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	OriginTimestamp time.Time `json:"origin_timestamp"`
	ParticipantID   uint32    `json:"participant_id"`
}

func (m ParticipantJoinBroadcast) MsgType() Type { return m.Type }

type ParticipantLeaveBroadcast struct {
	Type            Type      `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	OriginTimestamp time.Time `json:"origin_timestamp"`
	ParticipantID   uint32    `json:"participant_id"`
}

func (m ParticipantLeaveBroadcast) MsgType() Type { return m.Type }

type ObjectAddRequest struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
	Asset     AssetRef  `json:"asset"`
	Pose      Pose      `json:"pose"`
	Persist   bool      `json:"persist"`
}

func (m ObjectAddRequest) MsgType() Type { return m.Type }

type ObjectAddResponse struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
	ObjectID  uint32    `json:"object_id"`
}

func (m ObjectAddResponse) MsgType() Type { return m.Type }

type ObjectAddBroadcast struct {
	Type            Type      `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	OriginTimestamp time.Time `json:"origin_timestamp"`
	Object          Object    `json:"object"`
}

func (m ObjectAddBroadcast) MsgType() Type { return m.Type }

type ObjectDeleteRequest struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
	ObjectID  uint32    `json:"object_id"`
}

func (m ObjectDeleteRequest) MsgType() Type { return m.Type }

type ObjectDeleteResponse struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
}

func (m ObjectDeleteResponse) MsgType() Type { return m.Type }

type ObjectDeleteBroadcast struct {
	Type            Type      `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	OriginTimestamp time.Time `json:"origin_timestamp"`
	ObjectID        uint32    `json:"object_id"`
}

func (m ObjectDeleteBroadcast) MsgType() Type { return m.Type }

// ObjectMove is fire and forget: no response, the broadcast to other
// participants is coalesced to frame boundaries.
type ObjectMove struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ObjectID  uint32    `json:"object_id"`
	Pose      Pose      `json:"pose"`
}

func (m ObjectMove) MsgType() Type { return m.Type }

type ObjectMoveBroadcast struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ObjectID  uint32    `json:"object_id"`
	Pose      Pose      `json:"pose"`
}

func (m ObjectMoveBroadcast) MsgType() Type { return m.Type }

type SnapshotSaveRequest struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
}

func (m SnapshotSaveRequest) MsgType() Type { return m.Type }

type SnapshotSaveResponse struct {
	Type        Type      `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   uint32    `json:"request_id"`
	SnapshotID  string    `json:"snapshot_id"`
	ObjectCount int       `json:"object_count"`
}

func (m SnapshotSaveResponse) MsgType() Type { return m.Type }

type SnapshotRestoreRequest struct {
	Type       Type      `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  uint32    `json:"request_id"`
	SnapshotID string    `json:"snapshot_id"`
}

func (m SnapshotRestoreRequest) MsgType() Type { return m.Type }

type SnapshotRestoreResponse struct {
	Type        Type      `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   uint32    `json:"request_id"`
	ObjectCount int       `json:"object_count"`
}

func (m SnapshotRestoreResponse) MsgType() Type { return m.Type }

// AssetResolveRequest asks the server to load an asset template, fetching it
// if it is not cached. A newer resolve from the same participant supersedes
// an in-flight one.
type AssetResolveRequest struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
	Asset     AssetRef  `json:"asset"`
}

func (m AssetResolveRequest) MsgType() Type { return m.Type }

type AssetResolveResponse struct {
	Type        Type      `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   uint32    `json:"request_id"`
	Asset       AssetRef  `json:"asset"`
	Format      string    `json:"format"`
	PayloadSize int       `json:"payload_size"`
	Bounds      Volume    `json:"bounds"`
	MeshCount   int       `json:"mesh_count"`
	NodeCount   int       `json:"node_count"`
}

func (m AssetResolveResponse) MsgType() Type { return m.Type }

type AssetCancelRequest struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
}

func (m AssetCancelRequest) MsgType() Type { return m.Type }

type AssetCancelResponse struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
	Canceled  bool      `json:"canceled"`
}

func (m AssetCancelResponse) MsgType() Type { return m.Type }

// FilterStats is the wire form of one existence filter's diagnostics.
type FilterStats struct {
	Adds                       uint64  `json:"adds"`
	FillRatio                  float64 `json:"fill_ratio"`
	EstimatedFalsePositiveRate float64 `json:"estimated_false_positive_rate"`
}

// LoaderStats is the wire form of the asset loader diagnostics.
type LoaderStats struct {
	CacheLen      int         `json:"cache_len"`
	CacheCapacity int         `json:"cache_capacity"`
	InFlight      int         `json:"in_flight"`
	Present       FilterStats `json:"present"`
	Absent        FilterStats `json:"absent"`
}

type AssetStatsRequest struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
}

func (m AssetStatsRequest) MsgType() Type { return m.Type }

type AssetStatsResponse struct {
	Type      Type        `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID uint32      `json:"request_id"`
	Stats     LoaderStats `json:"stats"`
}

func (m AssetStatsResponse) MsgType() Type { return m.Type }

// PlacementCheckRequest validates a placement. With ObjectID zero it checks
// a hypothetical placement of Asset at Pose, otherwise it checks the named
// object at its current pose.
type PlacementCheckRequest struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
	Asset     AssetRef  `json:"asset"`
	Pose      Pose      `json:"pose"`
	ObjectID  uint32    `json:"object_id,omitempty"`
}

func (m PlacementCheckRequest) MsgType() Type { return m.Type }

type PlacementCheckResponse struct {
	Type              Type      `json:"type"`
	Timestamp         time.Time `json:"timestamp"`
	RequestID         uint32    `json:"request_id"`
	Valid             bool      `json:"valid"`
	CollidingObjectID uint32    `json:"colliding_object_id,omitempty"`
}

func (m PlacementCheckResponse) MsgType() Type { return m.Type }

type PlacementDebugRequest struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id"`
}

func (m PlacementDebugRequest) MsgType() Type { return m.Type }

type PlacementDebugResponse struct {
	Type      Type                `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	RequestID uint32              `json:"request_id"`
	Index     collision.Stats     `json:"index"`
	Grid      collision.GridStats `json:"grid"`
}

func (m PlacementDebugResponse) MsgType() Type { return m.Type }
