package cron

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// TakeStore is the subset of the take log needed by cron jobs. Defined here
// to avoid a dependency on the takelog package.
type TakeStore interface {
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ArtifactPurgeJob deletes downloaded artifacts older than MaxAge from Dir.
// Subdirectories are left alone; only regular files are considered.
type ArtifactPurgeJob struct {
	Dir          string
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 3 * * *"
}

// Compile-time interface check.
var _ Job = (*ArtifactPurgeJob)(nil)

// Name implements Job.
func (j *ArtifactPurgeJob) Name() string { return "artifact_purge" }

// Schedule implements Job.
func (j *ArtifactPurgeJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 3 * * *"
}

// Run removes stale artifacts. Per-file removal errors are logged and do not
// abort the sweep.
func (j *ArtifactPurgeJob) Run(ctx context.Context) error {
	entries, err := os.ReadDir(j.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().Add(-j.MaxAge)
	var removed int

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(j.Dir, entry.Name())
		if err := os.Remove(path); err != nil {
			j.Logger.Warn("cron: artifact removal failed", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		j.Logger.Info("cron: purged stale artifacts", "dir", j.Dir, "count", removed)
	}
	return nil
}

// TakePurgeJob removes take-log entries older than MaxAge.
type TakePurgeJob struct {
	Store        TakeStore
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "30 3 * * *"
}

// Compile-time interface check.
var _ Job = (*TakePurgeJob)(nil)

// Name implements Job.
func (j *TakePurgeJob) Name() string { return "takelog_purge" }

// Schedule implements Job.
func (j *TakePurgeJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "30 3 * * *"
}

// Run purges old take-log entries.
func (j *TakePurgeJob) Run(ctx context.Context) error {
	purged, err := j.Store.Purge(ctx, j.MaxAge)
	if err != nil {
		return err
	}
	if purged > 0 {
		j.Logger.Info("cron: purged old takes", "count", purged)
	}
	return nil
}
