package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"preview-lab/domain"
)

// BadgerSnapshotStore is the local fallback for single-instance
// deployments without Redis: snapshots survive a process restart on
// disk, with the same TTL semantics as the cache-backed store.
type BadgerSnapshotStore struct {
	db  *badger.DB
	ttl time.Duration
	log *slog.Logger
}

func NewBadgerSnapshotStore(db *badger.DB, ttl time.Duration, log *slog.Logger) *BadgerSnapshotStore {
	return &BadgerSnapshotStore{db: db, ttl: ttl, log: log}
}

func (s *BadgerSnapshotStore) Save(_ context.Context, roomID domain.RoomID, state domain.RoomState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(snapshotKey(roomID)), data).WithTTL(s.ttl)
		return txn.SetEntry(e)
	})
}

func (s *BadgerSnapshotStore) Load(_ context.Context, roomID domain.RoomID) (domain.RoomState, bool, error) {
	var state domain.RoomState
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKey(roomID)))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			if err := json.Unmarshal(v, &state); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return domain.RoomState{}, false, err
	}
	return state, found, nil
}
