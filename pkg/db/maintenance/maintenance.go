package maintenance

import (
	"context"
	"log/slog"
	"time"

	"giggleglitch/pkg/db"
)

// Run prunes media older than maxAge once. A non-positive maxAge keeps
// everything.
func Run(ctx context.Context, d *db.DB, maxAge time.Duration) error {
	if maxAge <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := d.PruneMedia(maxAge)
	if err != nil {
		slog.Error("Media pruning failed", "error", err)
		return err
	}
	if n > 0 {
		slog.Info("Media pruning completed", "removed", n)
	}
	return nil
}

// Start prunes every interval until ctx is cancelled. Generated videos are
// large, so a long-running server must not keep all of them.
func Start(ctx context.Context, d *db.DB, maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	interval := maxAge / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = Run(ctx, d, maxAge)
			}
		}
	}()
}
