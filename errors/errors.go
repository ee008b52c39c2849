package errors

import "fmt"

var (
	ErrAuthentication = fmt.Errorf("authentication failed")
	ErrAuthorization  = fmt.Errorf("insufficient permission")
	ErrRateLimited    = fmt.Errorf("rate limit exceeded")
	ErrRoomNotFound   = fmt.Errorf("room not found")
	ErrNotParticipant = fmt.Errorf("not a participant of the room")
	ErrInvalidMessage = fmt.Errorf("invalid message")
	ErrRoomClosed     = fmt.Errorf("room closed")
	ErrCacheMiss      = fmt.Errorf("cache miss")
	ErrWorkerPanic    = fmt.Errorf("worker panic")
)
