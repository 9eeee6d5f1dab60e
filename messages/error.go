package messages

import "github.com/aukilabs/go-tooling/pkg/errors"

// Error types attached to errors flowing out of message handlers.
const (
	ErrTypeMsgSkip            = "msg_skip"
	ErrTypeSceneNotJoined     = "scene_not_joined"
	ErrTypeSceneAlreadyJoined = "scene_already_joined"
)

// ErrModuleMsgSkip is returned by a module that does not handle a given
// message.
var ErrModuleMsgSkip = errors.New("module does not handle the message").
	WithType(ErrTypeMsgSkip)

// ErrorCode qualifies an ErrorResponse.
type ErrorCode string

const (
	ErrorCodeBadRequest         ErrorCode = "bad_request"
	ErrorCodeNotFound           ErrorCode = "not_found"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeConflict           ErrorCode = "conflict"
	ErrorCodeCanceled           ErrorCode = "canceled"
	ErrorCodeTooBusy            ErrorCode = "server_too_busy"
	ErrorCodeInternal           ErrorCode = "internal_server_error"
	ErrorCodeSceneNotJoined     ErrorCode = "scene_not_joined"
	ErrorCodeSceneAlreadyJoined ErrorCode = "scene_already_joined"
)
