package workers

import (
	"context"
	"log/slog"
	"time"
)

// ReaperWorker sweeps the registry on a fixed interval and evicts rooms
// that are both empty and idle beyond the threshold. Emptied rooms are
// kept until then so a fast reconnect finds its state intact.
type ReaperWorker struct {
	log      *slog.Logger
	interval time.Duration
	sweep    func(now time.Time) int
}

func NewReaperWorker(log *slog.Logger, interval time.Duration, sweep func(now time.Time) int) *ReaperWorker {
	return &ReaperWorker{log: log, interval: interval, sweep: sweep}
}

func (w *ReaperWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping reaper")
			return ctx.Err()
		case now := <-ticker.C:
			if reaped := w.sweep(now); reaped > 0 {
				w.log.Info("Reaped idle rooms", "count", reaped)
			}
		}
	}
}
