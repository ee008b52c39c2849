package protocol

import (
	"strings"

	"preview-lab/domain"
)

// Cross-instance pub/sub channel naming. Channels are keyed by room or
// actor so sibling instances can route without inspecting payloads.
const (
	roomChannelPrefix = "preview:room:"
	userChannelPrefix = "preview:user:"

	RoomChannelPattern = roomChannelPrefix + "*"
	UserChannelPattern = userChannelPrefix + "*"
)

func RoomChannel(roomID domain.RoomID) string {
	return roomChannelPrefix + string(roomID)
}

func UserChannel(actorID string) string {
	return userChannelPrefix + actorID
}

// UserChannelActor extracts the actor id from a user channel name.
// Reports false for any other channel, room channels included.
func UserChannelActor(channel string) (string, bool) {
	return strings.CutPrefix(channel, userChannelPrefix)
}
