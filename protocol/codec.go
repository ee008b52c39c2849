package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"preview-lab/domain"
	"preview-lab/domain/event"
)

// Encode frames a server event for delivery. The envelope carries the
// event metadata, the payload only the type-specific fields.
func Encode(evt event.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	env := Envelope{
		Type:      string(evt.Kind()),
		Payload:   payload,
		RoomID:    string(evt.RoomID()),
		ActorID:   evt.ActorID(),
		Timestamp: evt.OccurredAt(),
		MessageID: evt.EventID().String(),
	}
	return json.Marshal(env)
}

// DecodeEvent reconstructs a server event from a bus envelope. The
// switch is exhaustive over the event enum; anything else is a protocol
// error, not a silent drop.
func DecodeEvent(env Envelope) (event.DomainEvent, error) {
	meta, err := metaFrom(env)
	if err != nil {
		return nil, err
	}

	switch event.Type(env.Type) {
	case event.TypeStateSync:
		return decodeInto(env, &event.StateSync{Meta: meta})
	case event.TypeContentUpdate:
		return decodeInto(env, &event.ContentUpdated{Meta: meta})
	case event.TypeSettingsChanged:
		return decodeInto(env, &event.SettingsChanged{Meta: meta})
	case event.TypeParticipantJoined:
		return decodeInto(env, &event.ParticipantJoined{Meta: meta})
	case event.TypeParticipantLeft:
		return decodeInto(env, &event.ParticipantLeft{Meta: meta})
	case event.TypeDevicePreviewChanged:
		return decodeInto(env, &event.DevicePreviewChanged{Meta: meta})
	case event.TypeCursorActivity:
		return decodeInto(env, &event.CursorActivity{Meta: meta})
	case event.TypeInteractionResult:
		return decodeInto(env, &event.InteractionResult{Meta: meta})
	case event.TypeError:
		return decodeInto(env, &event.ErrorEvent{Meta: meta})
	}
	return nil, fmt.Errorf("unknown event type %q", env.Type)
}

type decodable interface {
	event.DomainEvent
}

func decodeInto[T decodable](env Envelope, evt T) (event.DomainEvent, error) {
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, evt); err != nil {
			return nil, err
		}
	}
	return evt, nil
}

func metaFrom(env Envelope) (event.Meta, error) {
	id, err := uuid.Parse(env.MessageID)
	if err != nil {
		return event.Meta{}, fmt.Errorf("bad event id %q: %w", env.MessageID, err)
	}
	return event.Meta{
		ID:    id,
		Room:  domain.RoomID(env.RoomID),
		Actor: env.ActorID,
		At:    env.Timestamp,
	}, nil
}

// BusEnvelope wraps a wire envelope with its origin instance so
// subscribers can drop their own publications.
type BusEnvelope struct {
	Origin   string   `json:"origin"`
	Envelope Envelope `json:"envelope"`
}

func EncodeBus(origin string, evt event.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return json.Marshal(BusEnvelope{
		Origin: origin,
		Envelope: Envelope{
			Type:      string(evt.Kind()),
			Payload:   payload,
			RoomID:    string(evt.RoomID()),
			ActorID:   evt.ActorID(),
			Timestamp: evt.OccurredAt(),
			MessageID: evt.EventID().String(),
		},
	})
}

func DecodeBus(data []byte) (BusEnvelope, error) {
	var be BusEnvelope
	if err := json.Unmarshal(data, &be); err != nil {
		return BusEnvelope{}, err
	}
	return be, nil
}
