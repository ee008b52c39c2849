package ws

import (
	"context"

	"preview-lab/domain"
	"preview-lab/domain/event"
	"preview-lab/errors"
	"preview-lab/protocol"
)

// dispatch routes one inbound frame. The switch over message types is
// exhaustive; anything unknown was already rejected by the envelope
// parser. Every rejection yields exactly one error frame to this
// connection and nothing to anyone else.
func (h *Handler) dispatch(conn *Conn, identity domain.Identity, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), h.operationTimeout)
	defer cancel()

	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		h.sendError(conn, identity, "", err)
		return
	}

	if err := h.limiter.Allow(ctx, identity.SubjectID); err != nil {
		h.sendError(conn, identity, env.RoomID, err)
		return
	}

	roomID := domain.RoomID(env.RoomID)

	switch protocol.MessageType(env.Type) {
	case protocol.MsgJoinRoom:
		h.handleJoin(ctx, conn, identity, env)

	case protocol.MsgUpdateContent:
		var payload protocol.UpdateContentPayload
		if err := h.roomPayload(env, &payload); err != nil {
			h.sendError(conn, identity, env.RoomID, err)
			return
		}
		if _, err := h.service.UpdateContent(ctx, identity, roomID, payload.Sections); err != nil {
			h.sendError(conn, identity, env.RoomID, err)
		}

	case protocol.MsgUpdateSettings:
		var payload protocol.UpdateSettingsPayload
		if err := h.roomPayload(env, &payload); err != nil {
			h.sendError(conn, identity, env.RoomID, err)
			return
		}
		settings := domain.Settings{
			DeviceMode:   payload.DeviceMode,
			ContrastMode: payload.ContrastMode,
			FontSize:     payload.FontSize,
		}
		if _, err := h.service.UpdateSettings(ctx, identity, roomID, settings); err != nil {
			h.sendError(conn, identity, env.RoomID, err)
		}

	case protocol.MsgToggleDeviceMode:
		var payload protocol.ToggleDeviceModePayload
		if err := h.roomPayload(env, &payload); err != nil {
			h.sendError(conn, identity, env.RoomID, err)
			return
		}
		if _, err := h.service.ToggleDeviceMode(ctx, identity, roomID, payload.DeviceMode); err != nil {
			h.sendError(conn, identity, env.RoomID, err)
		}

	case protocol.MsgCursorEvent:
		var payload protocol.CursorPayload
		if err := h.roomPayload(env, &payload); err != nil {
			h.sendError(conn, identity, env.RoomID, err)
			return
		}
		if err := h.service.RelayCursor(ctx, identity, roomID, payload.Cursor); err != nil {
			h.sendError(conn, identity, env.RoomID, err)
		}

	case protocol.MsgSimulateInteraction:
		var payload protocol.SimulateInteractionPayload
		if err := h.roomPayload(env, &payload); err != nil {
			h.sendError(conn, identity, env.RoomID, err)
			return
		}
		result, err := h.service.SimulateInteraction(ctx, identity, roomID, payload)
		if err != nil {
			h.sendError(conn, identity, env.RoomID, err)
			return
		}
		_ = conn.Consume(ctx, result)

	case protocol.MsgDisconnect:
		// Graceful goodbye: the read pump exits and cleanup follows.
		conn.Close()
	}
}

func (h *Handler) handleJoin(ctx context.Context, conn *Conn, identity domain.Identity,
	env protocol.Envelope) {
	var payload protocol.JoinRoomPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		h.sendError(conn, identity, env.RoomID, err)
		return
	}
	kind, err := domain.ParseResourceKind(payload.ResourceKind)
	if err != nil {
		h.sendError(conn, identity, env.RoomID, errors.ErrInvalidMessage)
		return
	}

	state, err := h.service.JoinRoom(ctx, identity, kind, payload.ResourceID)
	if err != nil {
		h.sendError(conn, identity, env.RoomID, err)
		return
	}

	sync := event.StateSync{
		Meta:  event.NewMeta(domain.NewRoomID(kind, payload.ResourceID), identity.SubjectID),
		State: state,
	}
	_ = conn.Consume(ctx, sync)
}

// roomPayload decodes a payload for a room-scoped operation, which
// additionally requires a roomId on the envelope.
func (h *Handler) roomPayload(env protocol.Envelope, out any) error {
	if env.RoomID == "" {
		return errors.ErrInvalidMessage
	}
	return protocol.DecodePayload(env, out)
}

func (h *Handler) sendError(conn *Conn, identity domain.Identity, roomID string, err error) {
	evt := event.ErrorEvent{
		Meta:    event.NewMeta(domain.RoomID(roomID), identity.SubjectID),
		Code:    errors.ReasonCode(err),
		Message: err.Error(),
	}
	_ = conn.Consume(context.Background(), evt)
}
