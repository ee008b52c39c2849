// Package storage persists best-effort RoomState snapshots used only
// for reconnect/restart recovery, never as the authoritative store.
package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"preview-lab/contract"
	"preview-lab/domain"
	"preview-lab/errors"
)

func snapshotKey(roomID domain.RoomID) string {
	return fmt.Sprintf("session:%s", roomID)
}

// CacheSnapshotStore keeps snapshots in the shared cache so that any
// sibling instance can rehydrate a room after a reconnect.
type CacheSnapshotStore struct {
	cache contract.Cache
	ttl   time.Duration
}

func NewCacheSnapshotStore(cache contract.Cache, ttl time.Duration) *CacheSnapshotStore {
	return &CacheSnapshotStore{cache: cache, ttl: ttl}
}

func (s *CacheSnapshotStore) Save(ctx context.Context, roomID domain.RoomID, state domain.RoomState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.cache.SetWithExpiry(ctx, snapshotKey(roomID), string(data), s.ttl)
}

func (s *CacheSnapshotStore) Load(ctx context.Context, roomID domain.RoomID) (domain.RoomState, bool, error) {
	raw, err := s.cache.Get(ctx, snapshotKey(roomID))
	if stderrors.Is(err, errors.ErrCacheMiss) {
		return domain.RoomState{}, false, nil
	}
	if err != nil {
		return domain.RoomState{}, false, err
	}
	var state domain.RoomState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return domain.RoomState{}, false, err
	}
	return state, true, nil
}
