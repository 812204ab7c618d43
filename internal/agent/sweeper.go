package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/pawcare-labs/pawcare/internal/shared"
	"github.com/pawcare-labs/pawcare/internal/store"
)

const sweepInterval = 5 * time.Minute

// EvictCallback is called for every session dropped by the sweeper.
type EvictCallback func(userID, sessionID string)

// SweeperConfig configures StartSweeper.
type SweeperConfig struct {
	Interval       time.Duration
	SessionTTL     time.Duration
	EventRetention time.Duration
}

// StartSweeper runs a background goroutine that periodically evicts idle
// sessions and prunes old audit events. It stops when ctx is done.
func StartSweeper(ctx context.Context, svc *Service, repo store.Repository, cfg SweeperConfig, onEvict EvictCallback) {
	if cfg.Interval <= 0 {
		cfg.Interval = sweepInterval
	}
	ticker := time.NewTicker(cfg.Interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started",
			"interval", cfg.Interval,
			"ttl", cfg.SessionTTL,
			"event_retention", cfg.EventRetention)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, svc, repo, cfg, onEvict)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, svc *Service, repo store.Repository, cfg SweeperConfig, onEvict EvictCallback) {
	if cfg.SessionTTL > 0 {
		evicted := svc.EvictIdle(cfg.SessionTTL)
		for _, key := range evicted {
			if onEvict != nil {
				onEvict(key.UserID, key.SessionID)
			}
		}
		if len(evicted) > 0 {
			slog.Info("Sweeper evicted idle sessions", "count", len(evicted), "remaining", svc.Len())
		}
	}

	if repo == nil || cfg.EventRetention <= 0 {
		return
	}

	cutoff := time.Now().Add(-cfg.EventRetention)
	var deleted int64
	err := shared.RetryOnConflict(ctx, "prune triage events", 3, 100*time.Millisecond, func() error {
		n, err := repo.DeleteTriageEventsBefore(ctx, cutoff)
		deleted = n
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Sweeper canceled while pruning events", "error", err)
			return
		}
		slog.Error("Sweeper failed to prune triage events", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Sweeper pruned triage events", "count", deleted)
	}
}
