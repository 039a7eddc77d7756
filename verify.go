package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/pathpilot/fhirserve/cache"
	"github.com/pathpilot/fhirserve/store"
)

// runPeriodicVerify checks at the given interval that the backing files still
// match the state recorded when their lines were counted. The data files are
// read-only by contract; drift means something rewrote them underneath the
// process, and every derived structure has to go.
func runPeriodicVerify(
	ctx context.Context,
	interval time.Duration,
	lines *store.LineCountIndex,
	resultCache *cache.Cache,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("periodic drift verification started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("periodic drift verification stopped")
			return
		case <-ticker.C:
			start := time.Now()
			drifted := lines.Drifted()
			if len(drifted) == 0 {
				logger.Debug("drift verification complete, files are unchanged", "duration", time.Since(start))
				continue
			}
			for _, path := range drifted {
				lines.Invalidate(path)
			}
			resultCache.Clear()
			logger.Warn("data files changed underneath the process, caches cleared",
				"drifted", len(drifted),
				"duration", time.Since(start),
			)
		}
	}
}
