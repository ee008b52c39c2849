package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"preview-lab/contract"
	"preview-lab/domain"
	"preview-lab/domain/event"
	"preview-lab/domain/session"
	"preview-lab/errors"
	"preview-lab/observability"
	"preview-lab/protocol"
	"preview-lab/runtime/workers"
)

// Options groups the tunables the orchestrator needs; every field is
// required and comes from configuration.
type Options struct {
	BufferSize        int
	CommandBufferSize int
	SinkTimeout       time.Duration
	PublishTimeout    time.Duration
	SnapshotTimeout   time.Duration
	IdleThreshold     time.Duration
	ReaperInterval    time.Duration
	HeartbeatInterval time.Duration
}

type roomHandle struct {
	id           domain.RoomID
	kind         domain.ResourceKind
	resourceID   string
	commands     chan session.Command
	cancel       context.CancelFunc
	lastActivity atomic.Int64
}

func (h *roomHandle) lastActiveAt() time.Time {
	return time.Unix(0, h.lastActivity.Load())
}

// Orchestrator owns the room table and the long-lived workers. Rooms
// are created lazily on first join and destroyed only by the reaper.
// There is no ambient state: everything is reached through this object.
type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   *Registry
	bus        contract.Bus
	store      contract.SnapshotStore
	monitoring *observability.Manager
	instanceID string
	opts       Options

	rooms     map[domain.RoomID]*roomHandle
	events    chan event.DomainEvent
	snapshots chan workers.SnapshotRequest
	ctx       context.Context
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, registry *Registry,
	bus contract.Bus, store contract.SnapshotStore, monitoring *observability.Manager,
	instanceID string, opts Options) *Orchestrator {
	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		registry:   registry,
		bus:        bus,
		store:      store,
		monitoring: monitoring,
		instanceID: instanceID,
		opts:       opts,
		rooms:      make(map[domain.RoomID]*roomHandle),
		events:     make(chan event.DomainEvent, opts.BufferSize),
		snapshots:  make(chan workers.SnapshotRequest, opts.BufferSize),
	}
}

// Start registers the permanent workers and blocks inside the
// supervisor until the context is canceled.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	o.ctx = ctx
	o.supervisor.Add(
		workers.NewFanoutWorker(o.log, o.registry, o.bus, o.monitoring, o.instanceID,
			o.events, o.opts.SinkTimeout, o.opts.PublishTimeout),
		workers.NewBusWorker(o.log, o.bus, o.registry, o.monitoring, o.instanceID, o.opts.SinkTimeout),
		workers.NewSnapshotWorker(o.log, o.store, o.monitoring, o.snapshots, o.opts.SnapshotTimeout),
		workers.NewReaperWorker(o.log, o.opts.ReaperInterval, o.ReapIdle),
		workers.NewHeartbeatWorker(o.log, o.monitoring, o.opts.HeartbeatInterval),
	)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers", "instance", o.instanceID)
	o.supervisor.Run(ctx)
	return nil
}

// GetOrCreateRoom returns the handle for the room, creating it and its
// single-writer worker on first join. Creation attempts rehydration
// from the snapshot store before falling back to a default empty state.
func (o *Orchestrator) GetOrCreateRoom(ctx context.Context, kind domain.ResourceKind,
	resourceID string, creator domain.Identity) (domain.RoomID, error) {
	roomID := domain.NewRoomID(kind, resourceID)

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.rooms[roomID]; ok {
		return roomID, nil
	}
	if o.ctx == nil {
		return "", fmt.Errorf("orchestrator not started")
	}

	now := time.Now()
	room := domain.NewRoom(kind, resourceID, creator.SubjectID, now)
	o.rehydrate(ctx, room)

	handle := &roomHandle{
		id:         roomID,
		kind:       kind,
		resourceID: resourceID,
		commands:   make(chan session.Command, o.opts.CommandBufferSize),
	}
	handle.lastActivity.Store(now.UnixNano())

	roomCtx, cancel := context.WithCancel(o.ctx)
	handle.cancel = cancel

	worker := workers.NewRoomWorker(room, handle.commands, o.events, o.snapshots,
		func() []string { return o.registry.ActorIDsForRoom(roomID) },
		&handle.lastActivity, o.log)
	o.supervisor.Start(roomCtx, worker)

	o.rooms[roomID] = handle
	o.log.Info("Room created", "room", roomID)
	return roomID, nil
}

func (o *Orchestrator) rehydrate(ctx context.Context, room *domain.Room) {
	loadCtx, cancel := context.WithTimeout(ctx, o.opts.SnapshotTimeout)
	defer cancel()

	state, found, err := o.store.Load(loadCtx, room.ID)
	if err != nil {
		o.log.Warn("Snapshot rehydration failed, starting empty", "room", room.ID, "error", err)
		return
	}
	if found {
		room.State = state
		o.log.Info("Room rehydrated from snapshot", "room", room.ID,
			"version", state.Metadata.Version)
	}
}

// RoomMeta resolves the resource behind a live room id.
func (o *Orchestrator) RoomMeta(roomID domain.RoomID) (domain.ResourceKind, string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	handle, ok := o.rooms[roomID]
	if !ok {
		return "", "", false
	}
	return handle.kind, handle.resourceID, true
}

// Dispatch hands a command to the room's single writer. The send blocks
// until accepted so mutation order equals acceptance order.
func (o *Orchestrator) Dispatch(ctx context.Context, cmd session.Command) error {
	o.mu.Lock()
	handle, ok := o.rooms[cmd.RoomID()]
	o.mu.Unlock()
	if !ok {
		return errors.ErrRoomNotFound
	}

	select {
	case handle.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish pushes an event straight onto the fan-out path, bypassing the
// room worker. Used for cursor relays and admin broadcasts that do not
// mutate state.
func (o *Orchestrator) Publish(ctx context.Context, evt event.DomainEvent) error {
	o.mu.Lock()
	if handle, ok := o.rooms[evt.RoomID()]; ok {
		handle.lastActivity.Store(time.Now().UnixNano())
	}
	o.mu.Unlock()

	select {
	case o.events <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendToUser delivers to the actor's local connections; when none
// exist, the event rides the cross-instance user channel instead.
func (o *Orchestrator) SendToUser(ctx context.Context, actorID string, evt event.DomainEvent) error {
	sinks := o.registry.SinksForActor(actorID)
	if len(sinks) > 0 {
		for _, sink := range sinks {
			sinkCtx, cancel := context.WithTimeout(ctx, o.opts.SinkTimeout)
			if err := sink.Consume(sinkCtx, evt); err != nil {
				o.monitoring.SinkFailures.Add(1)
				o.log.Warn("Direct delivery failed", "actor", actorID, "error", err)
			}
			cancel()
		}
		return nil
	}

	payload, err := protocol.EncodeBus(o.instanceID, evt)
	if err != nil {
		return err
	}
	publishCtx, cancel := context.WithTimeout(ctx, o.opts.PublishTimeout)
	defer cancel()
	if err := o.bus.Publish(publishCtx, protocol.UserChannel(actorID), payload); err != nil {
		o.monitoring.BusPublishFailures.Add(1)
		o.log.Warn("Cross-instance user delivery failed", "actor", actorID, "error", err)
	}
	return nil
}

// ReapIdle removes every room that is empty and idle beyond the
// threshold. A room with participants is never removed, whatever its
// idle time. Cache snapshots are left to expire naturally.
func (o *Orchestrator) ReapIdle(now time.Time) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	reaped := 0
	for roomID, handle := range o.rooms {
		if o.registry.RoomSize(roomID) > 0 {
			continue
		}
		if now.Sub(handle.lastActiveAt()) <= o.opts.IdleThreshold {
			continue
		}
		handle.cancel()
		delete(o.rooms, roomID)
		reaped++
		o.log.Info("Room reaped", "room", roomID)
	}
	return reaped
}

func (o *Orchestrator) RoomCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.rooms)
}

// FlushSnapshots synchronously stores the current state of every live
// room, best effort. Called once during graceful shutdown while the
// room workers are still running.
func (o *Orchestrator) FlushSnapshots(ctx context.Context) {
	o.mu.Lock()
	handles := make([]*roomHandle, 0, len(o.rooms))
	for _, handle := range o.rooms {
		handles = append(handles, handle)
	}
	o.mu.Unlock()

	for _, handle := range handles {
		reply := make(chan domain.RoomState, 1)
		select {
		case handle.commands <- session.ReadState{Room: handle.id, Reply: reply}:
		case <-ctx.Done():
			return
		}

		select {
		case state := <-reply:
			saveCtx, cancel := context.WithTimeout(ctx, o.opts.SnapshotTimeout)
			if err := o.store.Save(saveCtx, handle.id, state); err != nil {
				o.log.Warn("Final snapshot failed", "room", handle.id, "error", err)
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

// Stop flushes final snapshots and shuts the supervised workers down.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	o.FlushSnapshots(flushCtx)
	cancel()

	o.supervisor.Stop()
}
