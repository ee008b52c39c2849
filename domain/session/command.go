// Package session defines the commands a room worker consumes and the
// replies it produces. One command channel per room serializes all
// mutations of that room.
package session

import (
	"encoding/json"

	"preview-lab/domain"
	"preview-lab/domain/event"
)

type Command interface {
	RoomID() domain.RoomID
}

// JoinReply carries the full-state sync returned to a joining
// connection. Receivers of later diffs already hold this state.
type JoinReply struct {
	State domain.RoomState
	Err   error
}

// UpdateReply carries the broadcast event produced by an accepted
// mutation, or the rejection error.
type UpdateReply struct {
	Event event.DomainEvent
	Err   error
}

type Join struct {
	Room     domain.RoomID
	Identity domain.Identity
	Reply    chan JoinReply
}

func (c Join) RoomID() domain.RoomID { return c.Room }

// Leave is dispatched after the connection has already been removed from
// the registry, so the recomputed collaborator set excludes it.
type Leave struct {
	Room     domain.RoomID
	Identity domain.Identity
}

func (c Leave) RoomID() domain.RoomID { return c.Room }

type UpdateContent struct {
	Room     domain.RoomID
	Identity domain.Identity
	Sections map[string]json.RawMessage
	Reply    chan UpdateReply
}

func (c UpdateContent) RoomID() domain.RoomID { return c.Room }

type UpdateSettings struct {
	Room     domain.RoomID
	Identity domain.Identity
	Settings domain.Settings
	Reply    chan UpdateReply
}

func (c UpdateSettings) RoomID() domain.RoomID { return c.Room }

type ToggleDeviceMode struct {
	Room       domain.RoomID
	Identity   domain.Identity
	DeviceMode string
	Reply      chan UpdateReply
}

func (c ToggleDeviceMode) RoomID() domain.RoomID { return c.Room }

// ReadState asks for a clone of the current state without mutating it.
// Used for re-requested syncs and the shutdown snapshot flush.
type ReadState struct {
	Room  domain.RoomID
	Reply chan domain.RoomState
}

func (c ReadState) RoomID() domain.RoomID { return c.Room }
