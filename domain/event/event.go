package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"preview-lab/domain"
)

// Type is the closed set of broadcastable event kinds. New kinds are a
// compile-time decision: the codec and the transport switch exhaustively.
type Type string

const (
	TypeStateSync            Type = "state_sync"
	TypeContentUpdate        Type = "content_update"
	TypeSettingsChanged      Type = "settings_changed"
	TypeParticipantJoined    Type = "participant_joined"
	TypeParticipantLeft      Type = "participant_left"
	TypeDevicePreviewChanged Type = "device_preview_changed"
	TypeCursorActivity       Type = "collaboration_cursor_event"
	TypeInteractionResult    Type = "interaction_result"
	TypeError                Type = "error"
)

type DomainEvent interface {
	EventID() uuid.UUID
	Kind() Type
	RoomID() domain.RoomID
	ActorID() string
	// SkipConn names a local connection the fan-out must not deliver to.
	// Empty means deliver to every participant.
	SkipConn() string
	OccurredAt() time.Time
}

// Meta carries the envelope fields shared by every event. It is excluded
// from the payload: the wire envelope serializes these at the top level.
type Meta struct {
	ID    uuid.UUID     `json:"-"`
	Room  domain.RoomID `json:"-"`
	Actor string        `json:"-"`
	Conn  string        `json:"-"`
	At    time.Time     `json:"-"`
}

func NewMeta(room domain.RoomID, actor string) Meta {
	return Meta{ID: uuid.New(), Room: room, Actor: actor, At: time.Now().UTC()}
}

func (m Meta) EventID() uuid.UUID { return m.ID }
func (m Meta) RoomID() domain.RoomID { return m.Room }
func (m Meta) ActorID() string { return m.Actor }
func (m Meta) SkipConn() string { return m.Conn }
func (m Meta) OccurredAt() time.Time { return m.At }

// StateSync carries the full room state. Sent directly to one
// connection on join or after a room reset, never fanned out abroad.
type StateSync struct {
	Meta
	State domain.RoomState `json:"state"`
}

func (StateSync) Kind() Type { return TypeStateSync }

type ContentUpdated struct {
	Meta
	Sections map[string]json.RawMessage `json:"sections"`
	Version  int64                      `json:"version"`
}

func (ContentUpdated) Kind() Type { return TypeContentUpdate }

type SettingsChanged struct {
	Meta
	Settings domain.Settings `json:"settings"`
	Version  int64           `json:"version"`
}

func (SettingsChanged) Kind() Type { return TypeSettingsChanged }

type ParticipantJoined struct {
	Meta
	Email         string   `json:"email"`
	Collaborators []string `json:"collaboratorIds"`
}

func (ParticipantJoined) Kind() Type { return TypeParticipantJoined }

type ParticipantLeft struct {
	Meta
	Collaborators []string `json:"collaboratorIds"`
}

func (ParticipantLeft) Kind() Type { return TypeParticipantLeft }

type DevicePreviewChanged struct {
	Meta
	DeviceMode string `json:"deviceMode"`
	Version    int64  `json:"version"`
}

func (DevicePreviewChanged) Kind() Type { return TypeDevicePreviewChanged }

// CursorActivity relays a collaborator's cursor/selection without
// touching room state. The cursor body stays opaque.
type CursorActivity struct {
	Meta
	Cursor json.RawMessage `json:"cursor"`
}

func (CursorActivity) Kind() Type { return TypeCursorActivity }

// InteractionResult echoes a simulated preview interaction back to the
// sender only.
type InteractionResult struct {
	Meta
	Interaction string          `json:"interaction"`
	Result      json.RawMessage `json:"result"`
}

func (InteractionResult) Kind() Type { return TypeInteractionResult }

// ErrorEvent is sent to the originating connection only; other
// participants are never informed of a rejected operation.
type ErrorEvent struct {
	Meta
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ErrorEvent) Kind() Type { return TypeError }
