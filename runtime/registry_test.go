package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"preview-lab/domain"
	"preview-lab/domain/event"
)

type stubSink struct{ name string }

func (s *stubSink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func identityFor(subject string) domain.Identity {
	return domain.Identity{
		SubjectID:    subject,
		Email:        subject + "@example.org",
		Role:         domain.RoleUser,
		ConnectionID: uuid.NewString(),
	}
}

func TestRegistry_Register_And_Join(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	identity := identityFor("alice")
	sink := &stubSink{name: "alice"}
	roomID := domain.NewRoomID(domain.KindWorkshop, "W1")

	// Given no connection is registered
	clients, participants := registry.Stats()
	req.Zero(clients)
	req.Zero(participants)

	// When a connection registers and joins a room
	registry.Register(identity, sink)
	registry.AddToRoom(identity.ConnectionID, roomID)

	// Then it is present, a participant, and a delivery target
	clients, participants = registry.Stats()
	req.Equal(1, clients)
	req.Equal(1, participants)
	req.True(registry.IsParticipant(identity.ConnectionID, roomID))
	req.Equal([]string{"alice"}, registry.ActorIDsForRoom(roomID))
	req.Len(registry.SinksForRoom(roomID, ""), 1)
	req.Len(registry.SinksForActor("alice"), 1)
}

func TestRegistry_SinksForRoom_SkipsTheEmitter(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := identityFor("alice")
	bob := identityFor("bob")
	roomID := domain.NewRoomID(domain.KindWorkshop, "W1")

	registry.Register(alice, &stubSink{name: "alice"})
	registry.Register(bob, &stubSink{name: "bob"})
	registry.AddToRoom(alice.ConnectionID, roomID)
	registry.AddToRoom(bob.ConnectionID, roomID)

	req.Len(registry.SinksForRoom(roomID, ""), 2)
	req.Len(registry.SinksForRoom(roomID, alice.ConnectionID), 1)
}

func TestRegistry_Unregister_RemovesEverywhere(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := identityFor("alice")
	roomA := domain.NewRoomID(domain.KindWorkshop, "W1")
	roomB := domain.NewRoomID(domain.KindQuestionnaire, "Q1")

	registry.Register(alice, &stubSink{})
	registry.AddToRoom(alice.ConnectionID, roomA)
	registry.AddToRoom(alice.ConnectionID, roomB)

	// When the connection disconnects
	identity, affected := registry.Unregister(alice.ConnectionID)

	// Then cleanup is synchronous across rooms and presence
	req.Equal("alice", identity.SubjectID)
	req.ElementsMatch([]domain.RoomID{roomA, roomB}, affected)
	req.False(registry.IsParticipant(alice.ConnectionID, roomA))
	req.Empty(registry.SinksForActor("alice"))
	clients, participants := registry.Stats()
	req.Zero(clients)
	req.Zero(participants)
}

func TestRegistry_Unregister_UnknownConnection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	identity, affected := registry.Unregister("ghost")
	req.Empty(identity.SubjectID)
	req.Nil(affected)
}

func TestRegistry_TwoConnectionsSameActor(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := domain.NewRoomID(domain.KindWorkshop, "W1")

	first := identityFor("alice")
	second := identityFor("alice")
	registry.Register(first, &stubSink{})
	registry.Register(second, &stubSink{})
	registry.AddToRoom(first.ConnectionID, roomID)
	registry.AddToRoom(second.ConnectionID, roomID)

	// Two participants, one distinct collaborator
	req.Equal(2, registry.RoomSize(roomID))
	req.Len(registry.SinksForActor("alice"), 2)
	req.ElementsMatch([]string{"alice", "alice"}, registry.ActorIDsForRoom(roomID))

	// Closing one connection keeps the actor present
	registry.Unregister(first.ConnectionID)
	req.Len(registry.SinksForActor("alice"), 1)
	req.Equal(1, registry.RoomSize(roomID))
}
