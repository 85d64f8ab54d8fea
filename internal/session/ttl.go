package session

import (
	"context"
	"log/slog"
	"time"
)

const defaultSweepInterval = time.Minute

// CleanupCallback is called for each session the TTL worker removes.
type CleanupCallback func(key Key)

// StartTTLWorker runs a background goroutine that periodically removes
// sessions idle for longer than ttl.
func StartTTLWorker(ctx context.Context, m *Manager, ttl, interval time.Duration, onCleanup CleanupCallback) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				SweepIdle(m, ttl, onCleanup)
			case <-ctx.Done():
				slog.Info("Session TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// SweepIdle removes idle sessions once and returns how many were removed.
func SweepIdle(m *Manager, ttl time.Duration, onCleanup CleanupCallback) int {
	idle := m.Idle(ttl)
	if len(idle) == 0 {
		return 0
	}

	slog.Info("Session TTL worker found idle sessions", "count", len(idle))
	for _, key := range idle {
		m.Remove(key)
		if onCleanup != nil {
			onCleanup(key)
		}
	}
	return len(idle)
}
