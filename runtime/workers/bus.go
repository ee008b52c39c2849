package workers

import (
	"context"
	"log/slog"
	"time"

	"preview-lab/contract"
	"preview-lab/observability"
	"preview-lab/protocol"
)

// BusWorker receives events republished by sibling instances and
// delivers them to local participants. Its own instance's publications
// are dropped on sight: local delivery already happened in the fanout.
type BusWorker struct {
	log         *slog.Logger
	bus         contract.Bus
	registry    contract.IRegistry
	monitoring  *observability.Manager
	instanceID  string
	sinkTimeout time.Duration
}

func NewBusWorker(log *slog.Logger, bus contract.Bus, registry contract.IRegistry,
	monitoring *observability.Manager, instanceID string, sinkTimeout time.Duration) *BusWorker {
	return &BusWorker{
		log:         log,
		bus:         bus,
		registry:    registry,
		monitoring:  monitoring,
		instanceID:  instanceID,
		sinkTimeout: sinkTimeout,
	}
}

func (w *BusWorker) Run(ctx context.Context) error {
	messages, err := w.bus.Subscribe(ctx, protocol.RoomChannelPattern, protocol.UserChannelPattern)
	if err != nil {
		// Supervisor restart doubles as the reconnect loop.
		w.log.Warn("Bus subscription failed, single-instance mode until reconnect", "error", err)
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				w.log.Warn("Bus stream closed, reconnecting")
				return nil
			}
			w.deliver(ctx, msg)
		}
	}
}

func (w *BusWorker) deliver(ctx context.Context, msg contract.BusMessage) {
	envelope, err := protocol.DecodeBus(msg.Payload)
	if err != nil {
		w.log.Warn("Undecodable bus message", "channel", msg.Channel, "error", err)
		return
	}
	if envelope.Origin == w.instanceID {
		return
	}

	evt, err := protocol.DecodeEvent(envelope.Envelope)
	if err != nil {
		w.log.Warn("Unknown bus event", "channel", msg.Channel, "error", err)
		return
	}

	var sinks []contract.EventSink
	if actorID, ok := protocol.UserChannelActor(msg.Channel); ok {
		sinks = w.registry.SinksForActor(actorID)
	} else {
		sinks = w.registry.SinksForRoom(evt.RoomID(), "")
	}

	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.monitoring.SinkFailures.Add(1)
			w.log.Warn("Cross-instance delivery failed", "room", evt.RoomID(), "error", err)
		}
		cancel()
	}
}
