package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerGCWorker periodically reclaims space in the value log. Badger does
// not run value-log garbage collection on its own; without this the store
// grows without bound under sustained message traffic.
type BadgerGCWorker struct {
	db       *badger.DB
	interval time.Duration
	log      *slog.Logger
}

func NewBadgerGCWorker(db *badger.DB, interval time.Duration, log *slog.Logger) *BadgerGCWorker {
	return &BadgerGCWorker{db: db, interval: interval, log: log}
}

func (w *BadgerGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping badger GC worker")
			return nil
		case <-ticker.C:
			// One pass per tick; ErrNoRewrite simply means there was
			// nothing worth collecting this round.
			if err := w.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
				w.log.Warn("Value log GC failed", "error", err)
			}
		}
	}
}
