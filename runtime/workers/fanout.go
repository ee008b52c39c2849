package workers

import (
	"context"
	"log/slog"
	"time"

	"preview-lab/contract"
	"preview-lab/domain/event"
	"preview-lab/observability"
	"preview-lab/protocol"
)

// FanoutWorker broadcasts room events to every local participant, then
// republishes on the cross-instance channel keyed by room id.
//
// Delivery is best effort with no ordering guarantee across instances:
// receivers reconcile content state through metadata.version, not
// arrival order. A failing bus degrades to single-instance broadcast
// and never blocks or fails local delivery.
type FanoutWorker struct {
	log            *slog.Logger
	registry       contract.IRegistry
	bus            contract.Bus
	monitoring     *observability.Manager
	instanceID     string
	events         <-chan event.DomainEvent
	sinkTimeout    time.Duration
	publishTimeout time.Duration
}

func NewFanoutWorker(log *slog.Logger, registry contract.IRegistry, bus contract.Bus,
	monitoring *observability.Manager, instanceID string, events <-chan event.DomainEvent,
	sinkTimeout, publishTimeout time.Duration) *FanoutWorker {
	return &FanoutWorker{
		log:            log,
		registry:       registry,
		bus:            bus,
		monitoring:     monitoring,
		instanceID:     instanceID,
		events:         events,
		sinkTimeout:    sinkTimeout,
		publishTimeout: publishTimeout,
	}
}

func (w *FanoutWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return ctx.Err()
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		}
	}
}

func (w *FanoutWorker) Fanout(ctx context.Context, evt event.DomainEvent) {
	w.monitoring.EventsFanned.Add(1)

	for _, sink := range w.registry.SinksForRoom(evt.RoomID(), evt.SkipConn()) {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.monitoring.SinkFailures.Add(1)
			w.log.Warn("Sink delivery failed", "room", evt.RoomID(), "error", err)
		}
		cancel()
	}

	w.republish(ctx, evt)
}

func (w *FanoutWorker) republish(ctx context.Context, evt event.DomainEvent) {
	switch evt.Kind() {
	case event.TypeStateSync, event.TypeError, event.TypeInteractionResult:
		// Direct-to-connection kinds never cross instances.
		return
	}

	payload, err := protocol.EncodeBus(w.instanceID, evt)
	if err != nil {
		w.log.Error("Bus encoding failed", "room", evt.RoomID(), "error", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, w.publishTimeout)
	defer cancel()
	if err := w.bus.Publish(publishCtx, protocol.RoomChannel(evt.RoomID()), payload); err != nil {
		w.monitoring.BusPublishFailures.Add(1)
		w.log.Warn("Cross-instance publish failed, single-instance broadcast only",
			"room", evt.RoomID(), "error", err)
	}
}
