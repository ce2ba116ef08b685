package services

import (
	"context"
	"time"

	"lifelessons/backend/utils"
)

// TrashSweeper empties expired trash on a fixed interval.
type TrashSweeper struct {
	trash    *TrashService
	interval time.Duration
	log      *utils.Logger
}

func NewTrashSweeper(trash *TrashService, interval time.Duration, log *utils.Logger) *TrashSweeper {
	return &TrashSweeper{trash: trash, interval: interval, log: log}
}

// Start blocks until ctx is done. A non-positive interval disables the sweeper.
func (w *TrashSweeper) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info("trash sweeper disabled")
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("trash sweeper started", "interval", w.interval, "retention", w.trash.Retention)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("trash sweeper stopping")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *TrashSweeper) sweep(ctx context.Context) {
	start := time.Now()
	n, err := w.trash.PurgeExpired(ctx)
	switch {
	case IsPurgeBusy(err):
		w.log.Debug("trash sweep skipped, purge already running")
	case err != nil:
		w.log.Error("trash sweep failed", "error", err)
	case n > 0:
		w.log.Info("trash sweep finished", "deleted", n, "took", time.Since(start))
	}
}
