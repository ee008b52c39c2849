package workers

import (
	"context"
	"log/slog"
	"time"

	"preview-lab/contract"
	"preview-lab/observability"
)

// SnapshotWorker is the persistence bridge: it writes best-effort state
// copies with a short timeout and never retries. A missed snapshot is
// acceptable loss bounded by the next accepted mutation.
type SnapshotWorker struct {
	log        *slog.Logger
	store      contract.SnapshotStore
	monitoring *observability.Manager
	requests   <-chan SnapshotRequest
	timeout    time.Duration
}

func NewSnapshotWorker(log *slog.Logger, store contract.SnapshotStore,
	monitoring *observability.Manager, requests <-chan SnapshotRequest,
	timeout time.Duration) *SnapshotWorker {
	return &SnapshotWorker{
		log:        log,
		store:      store,
		monitoring: monitoring,
		requests:   requests,
		timeout:    timeout,
	}
}

func (w *SnapshotWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping snapshot bridge")
			return ctx.Err()
		case req := <-w.requests:
			writeCtx, cancel := context.WithTimeout(ctx, w.timeout)
			if err := w.store.Save(writeCtx, req.Room, req.State); err != nil {
				w.monitoring.SnapshotFailures.Add(1)
				w.log.Warn("Snapshot write failed", "room", req.Room, "error", err)
			}
			cancel()
		}
	}
}
