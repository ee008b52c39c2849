package contract

import (
	"context"
	"reflect"
	"time"

	"preview-lab/domain"
	"preview-lab/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one delivery target, typically a connection's write pump.
// Consume must not block past its context.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry resolves live delivery targets for the fan-out path.
type IRegistry interface {
	SinksForRoom(roomID domain.RoomID, skipConn string) []EventSink
	SinksForActor(actorID string) []EventSink
}

// AccessRegistry is the external ownership/collaborator registry. It is
// queried per privileged operation; a query failure is treated as deny.
type AccessRegistry interface {
	IsOwner(ctx context.Context, kind domain.ResourceKind, resourceID, subjectID string) (bool, error)
	IsCollaborator(ctx context.Context, kind domain.ResourceKind, resourceID, subjectID string) (bool, error)
	HasGrantedAccess(ctx context.Context, kind domain.ResourceKind, resourceID, subjectID string) (bool, error)
}

// Cache is the shared counter/value store. Get returns errors.ErrCacheMiss
// for absent keys. Increment and Expire are the atomic primitives the
// rate limiter builds on; read-then-write is never acceptable there.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

type BusMessage struct {
	Channel string
	Payload []byte
}

// Bus is the cross-instance fan-out channel. Publish is best effort:
// unavailability degrades the system to single-instance broadcast and
// must never fail local delivery.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, patterns ...string) (<-chan BusMessage, error)
}

// SnapshotStore keeps non-authoritative RoomState copies for
// reconnect/restart recovery. Load's second return reports presence.
type SnapshotStore interface {
	Save(ctx context.Context, roomID domain.RoomID, state domain.RoomState) error
	Load(ctx context.Context, roomID domain.RoomID) (domain.RoomState, bool, error)
}
