package errors

import "errors"

// Machine-readable reason codes carried by error events. Every rejected
// operation yields exactly one error event to the originating connection.
const (
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeAuthorization  = "AUTHORIZATION_ERROR"
	CodeRateLimited    = "RATE_LIMIT_EXCEEDED"
	CodeRoomNotFound   = "ROOM_NOT_FOUND"
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeInternal       = "INTERNAL_ERROR"
)

func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrAuthentication):
		return CodeAuthentication
	case errors.Is(err, ErrAuthorization), errors.Is(err, ErrNotParticipant):
		return CodeAuthorization
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrRoomClosed):
		return CodeRoomNotFound
	case errors.Is(err, ErrInvalidMessage):
		return CodeInvalidMessage
	default:
		return CodeInternal
	}
}
