package party

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/amply/internal/shared"
)

// Janitor periodically advances finished tracks, ends idle parties and prunes stale signals.
type Janitor struct {
	coord    *Coordinator
	interval time.Duration
	idle     time.Duration
	ttl      time.Duration
	logger   *log.Logger
}

const DefaultJanitorInterval = 5 * time.Second

func NewJanitor(coord *Coordinator, cfg shared.PartyConfig, logger *log.Logger) *Janitor {
	interval := cfg.JanitorInterval()
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &Janitor{
		coord:    coord,
		interval: interval,
		idle:     cfg.IdleTimeout(),
		ttl:      cfg.SignalTTL(),
		logger:   logger,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Debug("janitor started", "interval", j.interval, "idle", j.idle, "signal_ttl", j.ttl)
	for {
		select {
		case <-ctx.Done():
			j.logger.Debug("janitor stopped")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// SweepResult counts what one sweep changed.
type SweepResult struct {
	Advanced int
	Ended    int
	Pruned   int64
}

// Sweep runs one pass. Failures are logged and the remaining steps still run.
func (j *Janitor) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	var err error

	if res.Advanced, err = j.coord.AdvanceFinished(ctx); err != nil {
		j.logger.Error("auto-advance sweep failed", "error", err)
	}
	if res.Ended, err = j.coord.EndIdle(ctx, j.idle); err != nil {
		j.logger.Error("idle sweep failed", "error", err)
	}
	if res.Pruned, err = j.coord.PruneSignals(ctx, j.ttl); err != nil {
		j.logger.Error("signal prune failed", "error", err)
	}

	if res.Advanced > 0 || res.Ended > 0 || res.Pruned > 0 {
		j.logger.Info("janitor sweep", "advanced", res.Advanced, "ended", res.Ended, "pruned", res.Pruned)
	}
	return res
}
