package memory

import (
	"context"

	"preview-lab/contract"
)

// NoopBus is the single-instance bus: publications vanish and no
// messages ever arrive. It keeps the fan-out path identical whether or
// not a real cross-instance channel is configured.
type NoopBus struct{}

func NewNoopBus() NoopBus { return NoopBus{} }

func (NoopBus) Publish(context.Context, string, []byte) error { return nil }

func (NoopBus) Subscribe(ctx context.Context, _ ...string) (<-chan contract.BusMessage, error) {
	ch := make(chan contract.BusMessage)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}
