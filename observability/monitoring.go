// Package observability aggregates live service telemetry.
package observability

import (
	"sync"
	"sync/atomic"
)

// Stats is the public view exposed to admin tooling.
type Stats struct {
	ConnectedClients  int `json:"connectedClients"`
	ActiveRooms       int `json:"activeRooms"`
	TotalParticipants int `json:"totalParticipants"`
}

// SelfStats is sampled by the heartbeat worker.
type SelfStats struct {
	RSSMb      uint64  `json:"rss_mb"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
}

// Manager holds atomic counters written on the hot paths and the latest
// heartbeat sample. None of its methods block.
type Manager struct {
	mu   sync.RWMutex
	self SelfStats

	EventsFanned       atomic.Uint64
	SinkFailures       atomic.Uint64
	BusPublishFailures atomic.Uint64
	SnapshotFailures   atomic.Uint64
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) SetSelf(self SelfStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.self = self
}

func (m *Manager) Self() SelfStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.self
}
