package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"preview-lab/contract"
	"preview-lab/domain"
	"preview-lab/domain/event"
	"preview-lab/observability"
	"preview-lab/protocol"
)

type captureSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *captureSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type fakeRegistry struct {
	sinks map[string][]contract.EventSink
}

func (r *fakeRegistry) SinksForRoom(roomID domain.RoomID, skipConn string) []contract.EventSink {
	return r.sinks[string(roomID)]
}

func (r *fakeRegistry) SinksForActor(actorID string) []contract.EventSink {
	return r.sinks[actorID]
}

type captureBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	fail      error
}

func (b *captureBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *captureBus) Subscribe(ctx context.Context, _ ...string) (<-chan contract.BusMessage, error) {
	ch := make(chan contract.BusMessage)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (b *captureBus) channelCount(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

func TestFanoutDeliversLocallyAndRepublishes(t *testing.T) {
	// Given one local participant and a working bus
	roomID := domain.NewRoomID(domain.KindWorkshop, "W1")
	sink := &captureSink{}
	bus := &captureBus{}
	worker := NewFanoutWorker(slog.Default(),
		&fakeRegistry{sinks: map[string][]contract.EventSink{string(roomID): {sink}}},
		bus, observability.NewManager(), "instance-a", nil, time.Second, time.Second)

	// When a content update is fanned out
	worker.Fanout(context.Background(), event.ContentUpdated{
		Meta: event.NewMeta(roomID, "alice"), Version: 1,
	})

	// Then the sink got it and the bus carries a copy for siblings
	require.Equal(t, 1, sink.count())
	require.Equal(t, 1, bus.channelCount(protocol.RoomChannel(roomID)))
}

func TestDirectKindsNeverCrossInstances(t *testing.T) {
	// Given a working bus
	roomID := domain.NewRoomID(domain.KindWorkshop, "W1")
	bus := &captureBus{}
	worker := NewFanoutWorker(slog.Default(),
		&fakeRegistry{sinks: map[string][]contract.EventSink{}},
		bus, observability.NewManager(), "instance-a", nil, time.Second, time.Second)

	// When connection-scoped kinds are fanned out
	worker.Fanout(context.Background(), event.StateSync{Meta: event.NewMeta(roomID, "alice")})
	worker.Fanout(context.Background(), event.ErrorEvent{Meta: event.NewMeta(roomID, "alice"), Code: "X"})
	worker.Fanout(context.Background(), event.InteractionResult{Meta: event.NewMeta(roomID, "alice")})

	// Then nothing was published abroad
	require.Zero(t, bus.channelCount(protocol.RoomChannel(roomID)))
}

func TestBusFailureDoesNotBreakLocalDelivery(t *testing.T) {
	// Given a participant and a dead bus
	roomID := domain.NewRoomID(domain.KindWorkshop, "W1")
	sink := &captureSink{}
	bus := &captureBus{fail: context.DeadlineExceeded}
	monitoring := observability.NewManager()
	worker := NewFanoutWorker(slog.Default(),
		&fakeRegistry{sinks: map[string][]contract.EventSink{string(roomID): {sink}}},
		bus, monitoring, "instance-a", nil, time.Second, time.Second)

	// When an event is fanned out
	worker.Fanout(context.Background(), event.SettingsChanged{
		Meta: event.NewMeta(roomID, "alice"), Version: 2,
	})

	// Then local delivery happened and the failure was only counted
	require.Equal(t, 1, sink.count())
	require.Equal(t, uint64(1), monitoring.BusPublishFailures.Load())
}

func TestBusWorkerDropsOwnPublications(t *testing.T) {
	// Given an event this very instance published
	roomID := domain.NewRoomID(domain.KindWorkshop, "W1")
	sink := &captureSink{}
	registry := &fakeRegistry{sinks: map[string][]contract.EventSink{string(roomID): {sink}}}
	worker := NewBusWorker(slog.Default(), &captureBus{}, registry,
		observability.NewManager(), "instance-a", time.Second)

	own, err := protocol.EncodeBus("instance-a", event.ContentUpdated{
		Meta: event.NewMeta(roomID, "alice"), Version: 1,
	})
	require.NoError(t, err)
	foreign, err := protocol.EncodeBus("instance-b", event.ContentUpdated{
		Meta: event.NewMeta(roomID, "bob"), Version: 2,
	})
	require.NoError(t, err)

	// When both arrive on the room channel
	worker.deliver(context.Background(), contract.BusMessage{
		Channel: protocol.RoomChannel(roomID), Payload: own,
	})
	worker.deliver(context.Background(), contract.BusMessage{
		Channel: protocol.RoomChannel(roomID), Payload: foreign,
	})

	// Then only the sibling's event reached the local participant
	require.Equal(t, 1, sink.count())
	got := func() event.DomainEvent {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.events[0]
	}()
	require.Equal(t, "bob", got.ActorID())
}

func TestBusWorkerRoutesUserChannelByActor(t *testing.T) {
	// Given bob has a local connection
	bobSink := &captureSink{}
	registry := &fakeRegistry{sinks: map[string][]contract.EventSink{"bob": {bobSink}}}
	worker := NewBusWorker(slog.Default(), &captureBus{}, registry,
		observability.NewManager(), "instance-a", time.Second)

	payload, err := protocol.EncodeBus("instance-b", event.ErrorEvent{
		Meta: event.NewMeta("", "system"), Code: "X", Message: "notice",
	})
	require.NoError(t, err)

	// When a sibling addresses bob directly
	worker.deliver(context.Background(), contract.BusMessage{
		Channel: protocol.UserChannel("bob"), Payload: payload,
	})

	// Then bob's sink receives it
	require.Equal(t, 1, bobSink.count())
}
