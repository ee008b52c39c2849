package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"preview-lab/domain"
	"preview-lab/infrastructure/memory"
)

func sampleState(t *testing.T) domain.RoomState {
	t.Helper()
	now := time.Now()
	room := domain.NewRoom(domain.KindWorkshop, "W1", "owner-1", now)
	room.MergeContent(map[string]json.RawMessage{
		"intro": json.RawMessage(`{"title":"hello"}`),
	}, now)
	room.RecomputeCollaborators([]string{"alice", "bob"}, now)
	return room.State
}

func TestCacheSnapshotStore_RoundTrip(t *testing.T) {
	req := require.New(t)
	store := NewCacheSnapshotStore(memory.NewCache(), time.Hour)
	state := sampleState(t)

	req.NoError(store.Save(context.Background(), "preview:workshop:W1", state))

	loaded, found, err := store.Load(context.Background(), "preview:workshop:W1")
	req.NoError(err)
	req.True(found)
	// A snapshot rehydrated with no intervening mutation equals the original
	req.Equal(state.Metadata.Version, loaded.Metadata.Version)
	req.Equal(state.Metadata.CollaboratorIDs, loaded.Metadata.CollaboratorIDs)
	req.Equal(state.Settings, loaded.Settings)
	req.JSONEq(string(state.Content["intro"]), string(loaded.Content["intro"]))
}

func TestCacheSnapshotStore_MissingRoom(t *testing.T) {
	req := require.New(t)
	store := NewCacheSnapshotStore(memory.NewCache(), time.Hour)

	_, found, err := store.Load(context.Background(), "preview:workshop:GHOST")
	req.NoError(err)
	req.False(found)
}

func TestBadgerSnapshotStore_RoundTrip(t *testing.T) {
	req := require.New(t)
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	req.NoError(err)
	defer func() { _ = db.Close() }()

	store := NewBadgerSnapshotStore(db, time.Hour, slog.Default())
	state := sampleState(t)

	req.NoError(store.Save(context.Background(), "preview:workshop:W1", state))

	loaded, found, err := store.Load(context.Background(), "preview:workshop:W1")
	req.NoError(err)
	req.True(found)
	req.Equal(state.Metadata.Version, loaded.Metadata.Version)
	req.JSONEq(string(state.Content["intro"]), string(loaded.Content["intro"]))

	_, found, err = store.Load(context.Background(), "preview:workshop:GHOST")
	req.NoError(err)
	req.False(found)
}
