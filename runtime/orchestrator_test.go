package runtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"preview-lab/domain"
	"preview-lab/domain/session"
	"preview-lab/errors"
	"preview-lab/infrastructure/memory"
	"preview-lab/observability"
	"preview-lab/runtime/workers"
)

type mapSnapshotStore struct {
	mu     sync.Mutex
	states map[domain.RoomID]domain.RoomState
}

func newMapSnapshotStore() *mapSnapshotStore {
	return &mapSnapshotStore{states: make(map[domain.RoomID]domain.RoomState)}
}

func (s *mapSnapshotStore) Save(_ context.Context, roomID domain.RoomID, state domain.RoomState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[roomID] = state.Clone()
	return nil
}

func (s *mapSnapshotStore) Load(_ context.Context, roomID domain.RoomID) (domain.RoomState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[roomID]
	if !ok {
		return domain.RoomState{}, false, nil
	}
	return state.Clone(), true, nil
}

func newTestOrchestrator(t *testing.T, store *mapSnapshotStore) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(slog.Default(), workers.NewSupervisor(slog.Default()),
		NewRegistry(), memory.NewNoopBus(), store, observability.NewManager(),
		"test-instance", Options{
			BufferSize:        16,
			CommandBufferSize: 16,
			SinkTimeout:       time.Second,
			PublishTimeout:    time.Second,
			SnapshotTimeout:   time.Second,
			IdleThreshold:     30 * time.Minute,
			ReaperInterval:    time.Minute,
			HeartbeatInterval: time.Minute,
		})
	// Room workers need a parent context; the permanent workers are not
	// part of these tests.
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	o.ctx = ctx
	return o
}

func TestReapIdleSkipsOccupiedAndRecentRooms(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(t, newMapSnapshotStore())
	alice := identityFor("alice")

	// Given an occupied room, an idle empty room and a fresh empty room
	occupied, err := o.GetOrCreateRoom(context.Background(), domain.KindWorkshop, "W1", alice)
	req.NoError(err)
	o.registry.Register(alice, &stubSink{name: "alice"})
	o.registry.AddToRoom(alice.ConnectionID, occupied)

	idle, err := o.GetOrCreateRoom(context.Background(), domain.KindWorkshop, "W2", alice)
	req.NoError(err)
	fresh, err := o.GetOrCreateRoom(context.Background(), domain.KindQuestionnaire, "Q1", alice)
	req.NoError(err)

	past := time.Now().Add(-time.Hour)
	o.rooms[occupied].lastActivity.Store(past.UnixNano())
	o.rooms[idle].lastActivity.Store(past.UnixNano())

	// When the reaper sweeps
	reaped := o.ReapIdle(time.Now())

	// Then only the empty idle room is gone
	req.Equal(1, reaped)
	req.Equal(2, o.RoomCount())
	_, _, ok := o.RoomMeta(idle)
	req.False(ok)
	_, _, ok = o.RoomMeta(occupied)
	req.True(ok)
	_, _, ok = o.RoomMeta(fresh)
	req.True(ok)
}

func TestOccupiedRoomSurvivesEverySweep(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(t, newMapSnapshotStore())
	alice := identityFor("alice")

	// Given a room whose only participant has been idle for days
	roomID, err := o.GetOrCreateRoom(context.Background(), domain.KindWorkshop, "W1", alice)
	req.NoError(err)
	o.registry.Register(alice, &stubSink{name: "alice"})
	o.registry.AddToRoom(alice.ConnectionID, roomID)
	o.rooms[roomID].lastActivity.Store(time.Now().Add(-72 * time.Hour).UnixNano())

	// When the reaper sweeps repeatedly
	for i := 0; i < 3; i++ {
		req.Zero(o.ReapIdle(time.Now()))
	}

	// Then the room is still there
	req.Equal(1, o.RoomCount())
}

func TestRoomRehydratesFromSnapshot(t *testing.T) {
	req := require.New(t)
	store := newMapSnapshotStore()
	roomID := domain.NewRoomID(domain.KindWorkshop, "W1")

	// Given a stored snapshot at version 7
	state := domain.NewRoomState()
	state.Metadata.Version = 7
	req.NoError(store.Save(context.Background(), roomID, state))

	o := newTestOrchestrator(t, store)

	// When the room is created
	created, err := o.GetOrCreateRoom(context.Background(), domain.KindWorkshop, "W1", identityFor("alice"))
	req.NoError(err)
	req.Equal(roomID, created)

	// Then its worker starts from the snapshot, not an empty state
	reply := make(chan domain.RoomState, 1)
	req.NoError(o.Dispatch(context.Background(), session.ReadState{Room: roomID, Reply: reply}))
	select {
	case got := <-reply:
		req.Equal(int64(7), got.Metadata.Version)
	case <-time.After(time.Second):
		t.Fatal("room worker did not answer")
	}
}

func TestDispatchToUnknownRoomFails(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(t, newMapSnapshotStore())

	// When a command targets a room that was never created
	err := o.Dispatch(context.Background(), session.ReadState{
		Room:  domain.NewRoomID(domain.KindWorkshop, "ghost"),
		Reply: make(chan domain.RoomState, 1),
	})

	// Then the caller sees the room-not-found sentinel
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestFlushSnapshotsStoresEveryLiveRoom(t *testing.T) {
	req := require.New(t)
	store := newMapSnapshotStore()
	o := newTestOrchestrator(t, store)
	alice := identityFor("alice")

	// Given two live rooms
	first, err := o.GetOrCreateRoom(context.Background(), domain.KindWorkshop, "W1", alice)
	req.NoError(err)
	second, err := o.GetOrCreateRoom(context.Background(), domain.KindQuestionnaire, "Q1", alice)
	req.NoError(err)

	// When shutdown flushes
	o.FlushSnapshots(context.Background())

	// Then both states are persisted
	_, found, err := store.Load(context.Background(), first)
	req.NoError(err)
	req.True(found)
	_, found, err = store.Load(context.Background(), second)
	req.NoError(err)
	req.True(found)
}
