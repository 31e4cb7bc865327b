package jobs

import (
	"context"
	"log"
	"time"

	"ticketbooth/internal/config"
	"ticketbooth/internal/repository"
)

// StartSessionCleanup garbage-collects expired and long-revoked sessions
// on a timer, independent of request traffic.
func StartSessionCleanup(ctx context.Context, cfg config.Config, sessions *repository.SessionStore) {
	interval := cfg.SessionCleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	timeout := cfg.SessionCleanupTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				count, err := sessions.DeleteStale(tickCtx, time.Now().UTC(), cfg.SessionRetention)
				cancel()
				if err != nil {
					log.Printf("session cleanup error: %v", err)
					continue
				}
				if count > 0 {
					log.Printf("session cleanup removed %d sessions", count)
				}
			}
		}
	}()
}
