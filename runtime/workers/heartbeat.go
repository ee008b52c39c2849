package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"

	"preview-lab/observability"
)

// HeartbeatWorker samples process health on an interval and feeds the
// monitoring manager. Purely local telemetry; it never touches rooms.
type HeartbeatWorker struct {
	log        *slog.Logger
	monitoring *observability.Manager
	interval   time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, monitoring *observability.Manager,
	interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, monitoring: monitoring, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			self, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.monitoring.SetSelf(self)
			w.log.Debug("Heartbeat",
				"rss_mb", self.RSSMb,
				"cpu_percent", self.CPUPercent,
				"goroutines", self.Goroutines)
		}
	}
}

func selfStats(p *process.Process) (observability.SelfStats, error) {
	mem, err := p.MemoryInfo()
	if err != nil {
		return observability.SelfStats{}, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return observability.SelfStats{}, err
	}
	return observability.SelfStats{
		RSSMb:      mem.RSS / 1024 / 1024,
		CPUPercent: cpu,
		Goroutines: runtime.NumGoroutine(),
	}, nil
}
