package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
)

type RoomID string

// NewRoomID derives the deterministic room id of a preview resource.
// One resource maps to exactly one room across all instances.
func NewRoomID(kind ResourceKind, resourceID string) RoomID {
	return RoomID(fmt.Sprintf("preview:%s:%s", kind, resourceID))
}

// Settings is the preview rendering configuration.
// A settings change replaces the whole dictionary.
type Settings struct {
	DeviceMode   string `json:"deviceMode"`
	ContrastMode string `json:"contrastMode"`
	FontSize     string `json:"fontSize"`
}

func DefaultSettings() Settings {
	return Settings{DeviceMode: "desktop", ContrastMode: "normal", FontSize: "medium"}
}

type Metadata struct {
	Version         int64     `json:"version"`
	LastModifiedAt  time.Time `json:"lastModifiedAt"`
	CollaboratorIDs []string  `json:"collaboratorIds"`
}

// RoomState is the shared preview document plus its settings and metadata.
// It is mutated only by the owning room worker, never by handlers.
type RoomState struct {
	Content  map[string]json.RawMessage `json:"content"`
	Settings Settings                   `json:"settings"`
	Metadata Metadata                   `json:"metadata"`
}

func NewRoomState() RoomState {
	return RoomState{
		Content:  make(map[string]json.RawMessage),
		Settings: DefaultSettings(),
	}
}

// Clone returns a deep copy, safe to hand to snapshots and sinks
// while the worker keeps mutating the original.
func (s RoomState) Clone() RoomState {
	out := s
	out.Content = make(map[string]json.RawMessage, len(s.Content))
	for k, v := range s.Content {
		out.Content[k] = append(json.RawMessage(nil), v...)
	}
	out.Metadata.CollaboratorIDs = append([]string(nil), s.Metadata.CollaboratorIDs...)
	return out
}

type Room struct {
	ID             RoomID
	Kind           ResourceKind
	ResourceID     string
	OwnerID        string
	State          RoomState
	CreatedAt      time.Time
	LastActivityAt time.Time
}

func NewRoom(kind ResourceKind, resourceID, ownerID string, now time.Time) *Room {
	return &Room{
		ID:             NewRoomID(kind, resourceID),
		Kind:           kind,
		ResourceID:     resourceID,
		OwnerID:        ownerID,
		State:          NewRoomState(),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// MergeContent shallow-merges the patch into the content document:
// each provided section replaces the section of the same name, untouched
// sections are kept. The version counter only ever increases, even for
// writers holding a stale version (last write wins, no conflict signal).
func (r *Room) MergeContent(patch map[string]json.RawMessage, now time.Time) int64 {
	if r.State.Content == nil {
		r.State.Content = make(map[string]json.RawMessage, len(patch))
	}
	for section, body := range patch {
		r.State.Content[section] = append(json.RawMessage(nil), body...)
	}
	return r.bump(now)
}

// ReplaceSettings swaps the settings dictionary wholesale.
func (r *Room) ReplaceSettings(settings Settings, now time.Time) int64 {
	r.State.Settings = settings
	return r.bump(now)
}

// SetDeviceMode is a settings mutation limited to the device field,
// used by the device preview toggle.
func (r *Room) SetDeviceMode(mode string, now time.Time) int64 {
	r.State.Settings.DeviceMode = mode
	return r.bump(now)
}

// RecomputeCollaborators derives collaboratorIds from the given actor ids.
// The result is a sorted set; it is never hand-edited elsewhere.
func (r *Room) RecomputeCollaborators(actorIDs []string, now time.Time) {
	ids := lo.Uniq(actorIDs)
	sort.Strings(ids)
	r.State.Metadata.CollaboratorIDs = ids
	r.LastActivityAt = now
}

func (r *Room) Touch(now time.Time) {
	r.LastActivityAt = now
}

func (r *Room) bump(now time.Time) int64 {
	r.State.Metadata.Version++
	r.State.Metadata.LastModifiedAt = now
	r.LastActivityAt = now
	return r.State.Metadata.Version
}
