package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"preview-lab/domain"
	"preview-lab/domain/event"
	"preview-lab/domain/session"
)

// SnapshotRequest asks the persistence bridge to store a state copy.
type SnapshotRequest struct {
	Room  domain.RoomID
	State domain.RoomState
}

// RoomWorker is the single writer of one room. All mutations arrive on
// the commands channel and are applied in acceptance order; handlers
// never touch the room directly. Different rooms run fully in parallel.
type RoomWorker struct {
	room          *domain.Room
	commands      <-chan session.Command
	events        chan<- event.DomainEvent
	snapshots     chan<- SnapshotRequest
	collaborators func() []string
	lastActivity  *atomic.Int64
	log           *slog.Logger
	now           func() time.Time
}

func NewRoomWorker(room *domain.Room, commands <-chan session.Command,
	events chan<- event.DomainEvent, snapshots chan<- SnapshotRequest,
	collaborators func() []string, lastActivity *atomic.Int64, log *slog.Logger) *RoomWorker {
	return &RoomWorker{
		room:          room,
		commands:      commands,
		events:        events,
		snapshots:     snapshots,
		collaborators: collaborators,
		lastActivity:  lastActivity,
		log:           log,
		now:           time.Now,
	}
}

func (w *RoomWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping room worker", "room", w.room.ID)
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				return nil
			}
			w.handle(ctx, cmd)
		}
	}
}

// handle applies one command under a corruption guard: if a mutation
// panics mid-apply, the state is rolled back to the pre-command copy
// and every participant receives a forced full sync.
func (w *RoomWorker) handle(ctx context.Context, cmd session.Command) {
	prev := w.room.State.Clone()

	defer func() {
		if r := recover(); r != nil {
			w.log.Error(fmt.Sprintf("Room state corrupted, resetting %s", w.room.ID), "panic", r)
			w.room.State = prev
			w.emit(ctx, event.StateSync{
				Meta:  event.NewMeta(w.room.ID, ""),
				State: w.room.State.Clone(),
			})
		}
	}()

	now := w.now()
	w.lastActivity.Store(now.UnixNano())

	switch c := cmd.(type) {
	case session.Join:
		w.room.RecomputeCollaborators(w.collaborators(), now)
		c.Reply <- session.JoinReply{State: w.room.State.Clone()}
		joined := event.ParticipantJoined{
			Meta:          event.NewMeta(w.room.ID, c.Identity.SubjectID),
			Email:         c.Identity.Email,
			Collaborators: w.room.State.Metadata.CollaboratorIDs,
		}
		// The joiner gets the full sync instead of its own join event.
		joined.Conn = c.Identity.ConnectionID
		w.emit(ctx, joined)

	case session.Leave:
		w.room.RecomputeCollaborators(w.collaborators(), now)
		w.emit(ctx, event.ParticipantLeft{
			Meta:          event.NewMeta(w.room.ID, c.Identity.SubjectID),
			Collaborators: w.room.State.Metadata.CollaboratorIDs,
		})

	case session.UpdateContent:
		version := w.room.MergeContent(c.Sections, now)
		evt := event.ContentUpdated{
			Meta:     event.NewMeta(w.room.ID, c.Identity.SubjectID),
			Sections: c.Sections,
			Version:  version,
		}
		c.Reply <- session.UpdateReply{Event: evt}
		w.emit(ctx, evt)
		w.snapshot()

	case session.UpdateSettings:
		version := w.room.ReplaceSettings(c.Settings, now)
		evt := event.SettingsChanged{
			Meta:     event.NewMeta(w.room.ID, c.Identity.SubjectID),
			Settings: c.Settings,
			Version:  version,
		}
		c.Reply <- session.UpdateReply{Event: evt}
		w.emit(ctx, evt)
		w.snapshot()

	case session.ToggleDeviceMode:
		version := w.room.SetDeviceMode(c.DeviceMode, now)
		evt := event.DevicePreviewChanged{
			Meta:       event.NewMeta(w.room.ID, c.Identity.SubjectID),
			DeviceMode: c.DeviceMode,
			Version:    version,
		}
		c.Reply <- session.UpdateReply{Event: evt}
		w.emit(ctx, evt)
		w.snapshot()

	case session.ReadState:
		w.room.Touch(now)
		c.Reply <- w.room.State.Clone()

	default:
		w.log.Warn(fmt.Sprintf("Unknown command %T for room %s", cmd, w.room.ID))
	}
}

func (w *RoomWorker) emit(ctx context.Context, evt event.DomainEvent) {
	select {
	case <-ctx.Done():
	case w.events <- evt:
	}
}

// snapshot is fire and forget: a full queue drops the request and the
// next accepted mutation bounds the data loss.
func (w *RoomWorker) snapshot() {
	select {
	case w.snapshots <- SnapshotRequest{Room: w.room.ID, State: w.room.State.Clone()}:
	default:
		w.log.Debug("Snapshot queue full, skipping", "room", w.room.ID)
	}
}
