package core

// Error codes carried on outbound error events.
const (
	ErrCodeRoomNotFound      = "room_not_found"
	ErrCodeNotJoined         = "not_joined"
	ErrCodeForbidden         = "forbidden"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeCharacterNotFound = "character_not_found"
	ErrCodeMessageNotFound   = "message_not_found"
	ErrCodeUpstream          = "upstream_unavailable"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
