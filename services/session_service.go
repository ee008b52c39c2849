package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"preview-lab/access"
	"preview-lab/contract"
	"preview-lab/domain"
	"preview-lab/domain/event"
	"preview-lab/domain/session"
	"preview-lab/errors"
	"preview-lab/observability"
	"preview-lab/protocol"
	"preview-lab/runtime"
)

type ISessionService interface {
	Register(identity domain.Identity, sink contract.EventSink)
	JoinRoom(ctx context.Context, identity domain.Identity, kind domain.ResourceKind, resourceID string) (domain.RoomState, error)
	UpdateContent(ctx context.Context, identity domain.Identity, roomID domain.RoomID, sections map[string]json.RawMessage) (event.DomainEvent, error)
	UpdateSettings(ctx context.Context, identity domain.Identity, roomID domain.RoomID, settings domain.Settings) (event.DomainEvent, error)
	ToggleDeviceMode(ctx context.Context, identity domain.Identity, roomID domain.RoomID, deviceMode string) (event.DomainEvent, error)
	RelayCursor(ctx context.Context, identity domain.Identity, roomID domain.RoomID, cursor json.RawMessage) error
	SimulateInteraction(ctx context.Context, identity domain.Identity, roomID domain.RoomID, payload protocol.SimulateInteractionPayload) (event.InteractionResult, error)
	Disconnect(ctx context.Context, connectionID string)
	BroadcastToRoom(ctx context.Context, roomID domain.RoomID, kind event.Type, payload json.RawMessage) error
	SendToUser(ctx context.Context, actorID string, kind event.Type, payload json.RawMessage) error
	GetStats() observability.Stats
}

// SessionService is the facade every surface goes through: the
// websocket transport and in-process admin tooling alike.
type SessionService struct {
	log          *slog.Logger
	orchestrator *runtime.Orchestrator
	registry     *runtime.Registry
	authorizer   *access.Authorizer
}

func NewSessionService(log *slog.Logger, orchestrator *runtime.Orchestrator,
	registry *runtime.Registry, authorizer *access.Authorizer) *SessionService {
	return &SessionService{
		log:          log,
		orchestrator: orchestrator,
		registry:     registry,
		authorizer:   authorizer,
	}
}

// Register binds an authenticated connection to its delivery sink.
// Called once per connection, after the handshake succeeded.
func (s *SessionService) Register(identity domain.Identity, sink contract.EventSink) {
	s.registry.Register(identity, sink)
}

// JoinRoom admits the identity into the resource's room, creating the
// room lazily, and returns the full state for the initial sync. The
// rest of the room learns about the join through a broadcast event.
func (s *SessionService) JoinRoom(ctx context.Context, identity domain.Identity,
	kind domain.ResourceKind, resourceID string) (domain.RoomState, error) {
	if !s.authorizer.CanAccessRoom(ctx, identity, kind, resourceID) {
		return domain.RoomState{}, errors.ErrAuthorization
	}

	roomID, err := s.orchestrator.GetOrCreateRoom(ctx, kind, resourceID, identity)
	if err != nil {
		return domain.RoomState{}, err
	}

	// Membership first, so the worker's collaborator derivation already
	// sees this connection when the join command lands.
	s.registry.AddToRoom(identity.ConnectionID, roomID)

	reply := make(chan session.JoinReply, 1)
	if err := s.orchestrator.Dispatch(ctx, session.Join{
		Room:     roomID,
		Identity: identity,
		Reply:    reply,
	}); err != nil {
		return domain.RoomState{}, err
	}

	select {
	case r := <-reply:
		return r.State, r.Err
	case <-ctx.Done():
		return domain.RoomState{}, ctx.Err()
	}
}

func (s *SessionService) UpdateContent(ctx context.Context, identity domain.Identity,
	roomID domain.RoomID, sections map[string]json.RawMessage) (event.DomainEvent, error) {
	if err := s.authorizeMutation(ctx, identity, roomID); err != nil {
		return nil, err
	}
	return s.dispatchUpdate(ctx, session.UpdateContent{
		Room:     roomID,
		Identity: identity,
		Sections: sections,
		Reply:    make(chan session.UpdateReply, 1),
	})
}

func (s *SessionService) UpdateSettings(ctx context.Context, identity domain.Identity,
	roomID domain.RoomID, settings domain.Settings) (event.DomainEvent, error) {
	if err := s.authorizeMutation(ctx, identity, roomID); err != nil {
		return nil, err
	}
	return s.dispatchUpdate(ctx, session.UpdateSettings{
		Room:     roomID,
		Identity: identity,
		Settings: settings,
		Reply:    make(chan session.UpdateReply, 1),
	})
}

func (s *SessionService) ToggleDeviceMode(ctx context.Context, identity domain.Identity,
	roomID domain.RoomID, deviceMode string) (event.DomainEvent, error) {
	if err := s.authorizeMutation(ctx, identity, roomID); err != nil {
		return nil, err
	}
	return s.dispatchUpdate(ctx, session.ToggleDeviceMode{
		Room:       roomID,
		Identity:   identity,
		DeviceMode: deviceMode,
		Reply:      make(chan session.UpdateReply, 1),
	})
}

// RelayCursor fans cursor activity out to the other participants
// without entering the room state machine: cursors are unversioned.
func (s *SessionService) RelayCursor(ctx context.Context, identity domain.Identity,
	roomID domain.RoomID, cursor json.RawMessage) error {
	if _, _, ok := s.orchestrator.RoomMeta(roomID); !ok {
		return errors.ErrRoomNotFound
	}
	if !s.registry.IsParticipant(identity.ConnectionID, roomID) {
		return errors.ErrNotParticipant
	}

	evt := event.CursorActivity{
		Meta:   event.NewMeta(roomID, identity.SubjectID),
		Cursor: cursor,
	}
	evt.Conn = identity.ConnectionID
	return s.orchestrator.Publish(ctx, evt)
}

// SimulateInteraction echoes a preview interaction result back to the
// sender only; shared state is untouched.
func (s *SessionService) SimulateInteraction(ctx context.Context, identity domain.Identity,
	roomID domain.RoomID, payload protocol.SimulateInteractionPayload) (event.InteractionResult, error) {
	if _, _, ok := s.orchestrator.RoomMeta(roomID); !ok {
		return event.InteractionResult{}, errors.ErrRoomNotFound
	}
	if !s.registry.IsParticipant(identity.ConnectionID, roomID) {
		return event.InteractionResult{}, errors.ErrNotParticipant
	}

	result := payload.Input
	if len(result) == 0 {
		result = json.RawMessage(`{"acknowledged":true}`)
	}
	return event.InteractionResult{
		Meta:        event.NewMeta(roomID, identity.SubjectID),
		Interaction: payload.Interaction,
		Result:      result,
	}, nil
}

// Disconnect removes the connection everywhere, then tells each
// affected room to recompute collaborators and announce the departure.
// An emptied room is left for the reaper so a fast reconnect finds its
// state intact.
func (s *SessionService) Disconnect(ctx context.Context, connectionID string) {
	identity, affected := s.registry.Unregister(connectionID)
	if identity.SubjectID == "" {
		return
	}

	for _, roomID := range affected {
		if err := s.orchestrator.Dispatch(ctx, session.Leave{
			Room:     roomID,
			Identity: identity,
		}); err != nil {
			s.log.Warn("Leave dispatch failed", "room", roomID, "error", err)
		}
	}
}

// BroadcastToRoom lets in-process subsystems push a typed event into a
// room. The payload is validated against the closed event enum.
func (s *SessionService) BroadcastToRoom(ctx context.Context, roomID domain.RoomID,
	kind event.Type, payload json.RawMessage) error {
	if _, _, ok := s.orchestrator.RoomMeta(roomID); !ok {
		return errors.ErrRoomNotFound
	}
	evt, err := s.systemEvent(roomID, kind, payload)
	if err != nil {
		return err
	}
	return s.orchestrator.Publish(ctx, evt)
}

func (s *SessionService) SendToUser(ctx context.Context, actorID string,
	kind event.Type, payload json.RawMessage) error {
	evt, err := s.systemEvent("", kind, payload)
	if err != nil {
		return err
	}
	return s.orchestrator.SendToUser(ctx, actorID, evt)
}

func (s *SessionService) GetStats() observability.Stats {
	clients, participants := s.registry.Stats()
	return observability.Stats{
		ConnectedClients:  clients,
		ActiveRooms:       s.orchestrator.RoomCount(),
		TotalParticipants: participants,
	}
}

func (s *SessionService) authorizeMutation(ctx context.Context, identity domain.Identity,
	roomID domain.RoomID) error {
	kind, resourceID, ok := s.orchestrator.RoomMeta(roomID)
	if !ok {
		return errors.ErrRoomNotFound
	}
	if !s.registry.IsParticipant(identity.ConnectionID, roomID) {
		return errors.ErrNotParticipant
	}
	if !s.authorizer.CanCollaborate(ctx, identity, kind, resourceID) {
		return errors.ErrAuthorization
	}
	return nil
}

func (s *SessionService) dispatchUpdate(ctx context.Context, cmd session.Command) (event.DomainEvent, error) {
	var reply chan session.UpdateReply
	switch c := cmd.(type) {
	case session.UpdateContent:
		reply = c.Reply
	case session.UpdateSettings:
		reply = c.Reply
	case session.ToggleDeviceMode:
		reply = c.Reply
	}

	if err := s.orchestrator.Dispatch(ctx, cmd); err != nil {
		return nil, err
	}

	select {
	case r := <-reply:
		return r.Event, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// systemEvent builds a typed event from a raw (type, payload) pair by
// round-tripping through the wire codec, so the closed enum stays the
// only entry point.
func (s *SessionService) systemEvent(roomID domain.RoomID, kind event.Type,
	payload json.RawMessage) (event.DomainEvent, error) {
	return protocol.DecodeEvent(protocol.Envelope{
		Type:      string(kind),
		Payload:   payload,
		RoomID:    string(roomID),
		ActorID:   "system",
		Timestamp: time.Now().UTC(),
		MessageID: uuid.NewString(),
	})
}
