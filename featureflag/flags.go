package featureflag

type Flag string

const (
	FlagDisableSceneState                Flag = "DISABLE_SCENE_STATE"
	FlagDisableParticipantJoinBroadcast  Flag = "DISABLE_PARTICIPANT_JOIN_BROADCAST"
	FlagDisableParticipantLeaveBroadcast Flag = "DISABLE_PARTICIPANT_LEAVE_BROADCAST"
	FlagDisableObjectAddBroadcast        Flag = "DISABLE_OBJECT_ADD_BROADCAST"
	FlagDisableObjectDeleteBroadcast     Flag = "DISABLE_OBJECT_DELETE_BROADCAST"
	FlagDisableObjectMoveBroadcast       Flag = "DISABLE_OBJECT_MOVE_BROADCAST"
	FlagDisableAssetPrefetch             Flag = "DISABLE_ASSET_PREFETCH"
)
