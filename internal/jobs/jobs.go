// Package jobs holds the periodic maintenance tasks of the API process.
package jobs

import (
	"context"
	"log/slog"
)

// RunSweeper forgets finished verification runs.
type RunSweeper interface {
	Sweep() int
}

// SnapshotSweeper drops expired run snapshots from an in-process store.
type SnapshotSweeper interface {
	Sweep(ctx context.Context) int
}

// Jobs groups the scheduled tasks.
type Jobs struct {
	runs      RunSweeper
	snapshots SnapshotSweeper
	logger    *slog.Logger
}

// NewJobs builds the job set. snapshots may be nil when snapshots live in Redis.
func NewJobs(runs RunSweeper, snapshots SnapshotSweeper, logger *slog.Logger) *Jobs {
	return &Jobs{runs: runs, snapshots: snapshots, logger: logger}
}

// SweepRuns releases idle attempts and expired snapshots.
func (j *Jobs) SweepRuns() {
	runs := j.runs.Sweep()
	snapshots := 0
	if j.snapshots != nil {
		snapshots = j.snapshots.Sweep(context.Background())
	}
	if runs > 0 || snapshots > 0 {
		j.logger.Info("swept verification runs", "runs", runs, "snapshots", snapshots)
	}
}
