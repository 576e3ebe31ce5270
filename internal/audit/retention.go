package audit

import (
	"context"
	"time"
)

// DefaultPruneInterval is how often the retention loop runs.
const DefaultPruneInterval = 6 * time.Hour

// Pruner deletes entries older than a cutoff. Implemented by
// SQLiteRepository.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Logger is the logging subset used by the retention loop.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Retention keeps the trail to a fixed age.
type Retention struct {
	Pruner   Pruner
	MaxAge   time.Duration
	Interval time.Duration // DefaultPruneInterval when zero
	Logger   Logger        // optional

	now func() time.Time
}

// Run prunes once immediately, then every Interval until ctx is done.
// A MaxAge of zero or less disables pruning and Run returns at once.
func (r *Retention) Run(ctx context.Context) {
	if r.MaxAge <= 0 || r.Pruner == nil {
		return
	}
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultPruneInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.pruneOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Retention) pruneOnce(ctx context.Context) {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	cutoff := now().Add(-r.MaxAge)

	n, err := r.Pruner.Prune(ctx, cutoff)
	if r.Logger == nil {
		return
	}
	switch {
	case err != nil:
		r.Logger.Error("audit prune failed", "error", err)
	case n > 0:
		r.Logger.Info("audit entries pruned", "deleted", n, "before", cutoff.UTC().Format(time.RFC3339))
	}
}
