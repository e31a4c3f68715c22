package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/CrewLink/internal/config"
	"github.com/Strob0t/CrewLink/internal/port/registry"
)

// HeartbeatMonitor periodically sweeps the connection registry and evicts
// connections whose last liveness signal is older than the timeout, treating
// them exactly like a closed connection. Recording liveness alone is not
// enough; without the sweep a silently dead peer stays online forever.
type HeartbeatMonitor struct {
	registry registry.Registry
	sweep    time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor creates a monitor from the heartbeat config.
func NewHeartbeatMonitor(reg registry.Registry, cfg config.Heartbeat) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		registry: reg,
		sweep:    cfg.Sweep,
		timeout:  cfg.Timeout,
	}
}

// Run sweeps until the context is cancelled. Always returns nil on
// cancellation so it composes with an errgroup shutdown.
func (m *HeartbeatMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.sweep)
	defer ticker.Stop()

	slog.Info("heartbeat monitor started", "sweep", m.sweep, "timeout", m.timeout)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			evicted := m.registry.SweepStale(ctx, m.timeout)
			for _, e := range evicted {
				slog.Warn("stale connection evicted",
					"agent_id", e.AgentID, "role", e.Role, "last_seen", e.LastSeen)
			}
		}
	}
}
