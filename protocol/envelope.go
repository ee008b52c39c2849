// Package protocol defines the wire envelope exchanged with clients and
// republished on the cross-instance bus.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"preview-lab/errors"
)

var validate = validator.New()

// MessageType is the closed set of client-to-server message kinds.
type MessageType string

const (
	MsgJoinRoom            MessageType = "join_room"
	MsgUpdateContent       MessageType = "update_content"
	MsgUpdateSettings      MessageType = "update_settings"
	MsgCursorEvent         MessageType = "collaboration_cursor_event"
	MsgToggleDeviceMode    MessageType = "toggle_device_mode"
	MsgSimulateInteraction MessageType = "simulate_interaction"
	MsgDisconnect          MessageType = "disconnect"
)

// Envelope is the bidirectional message frame, one per event.
type Envelope struct {
	Type      string          `json:"type" validate:"required"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RoomID    string          `json:"roomId,omitempty"`
	ActorID   string          `json:"actorId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	MessageID string          `json:"messageId" validate:"required"`
}

// ParseEnvelope decodes and validates one inbound frame. Unknown types
// are rejected here so downstream dispatch can switch exhaustively.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, errors.ErrInvalidMessage
	}
	if err := validate.Struct(env); err != nil {
		return Envelope{}, errors.ErrInvalidMessage
	}
	switch MessageType(env.Type) {
	case MsgJoinRoom, MsgUpdateContent, MsgUpdateSettings, MsgCursorEvent,
		MsgToggleDeviceMode, MsgSimulateInteraction, MsgDisconnect:
		return env, nil
	}
	return Envelope{}, errors.ErrInvalidMessage
}

type JoinRoomPayload struct {
	ResourceKind string `json:"resourceKind" validate:"required,oneof=workshop questionnaire"`
	ResourceID   string `json:"resourceId" validate:"required"`
}

type UpdateContentPayload struct {
	Sections map[string]json.RawMessage `json:"sections" validate:"required,min=1"`
}

type UpdateSettingsPayload struct {
	DeviceMode   string `json:"deviceMode" validate:"required"`
	ContrastMode string `json:"contrastMode" validate:"required"`
	FontSize     string `json:"fontSize" validate:"required"`
}

type ToggleDeviceModePayload struct {
	DeviceMode string `json:"deviceMode" validate:"required,oneof=desktop tablet mobile"`
}

type CursorPayload struct {
	Cursor json.RawMessage `json:"cursor" validate:"required"`
}

type SimulateInteractionPayload struct {
	Interaction string          `json:"interaction" validate:"required"`
	Input       json.RawMessage `json:"input,omitempty"`
}

// DecodePayload unmarshals and validates a typed payload struct.
func DecodePayload(env Envelope, out any) error {
	if len(env.Payload) == 0 {
		return errors.ErrInvalidMessage
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return errors.ErrInvalidMessage
	}
	if err := validate.Struct(out); err != nil {
		return errors.ErrInvalidMessage
	}
	return nil
}
