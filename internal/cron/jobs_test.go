package cron

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestArtifactPurgeJob_Defaults(t *testing.T) {
	t.Parallel()

	j := &ArtifactPurgeJob{Logger: testLogger()}
	if j.Name() != "artifact_purge" {
		t.Errorf("name = %q", j.Name())
	}
	if j.Schedule() != "0 3 * * *" {
		t.Errorf("schedule = %q", j.Schedule())
	}
	if (&ArtifactPurgeJob{ScheduleExpr: "*/10 * * * *"}).Schedule() != "*/10 * * * *" {
		t.Error("ScheduleExpr override ignored")
	}
}

func TestArtifactPurgeJob_Run(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	stale := filepath.Join(dir, "old.pak")
	if err := os.WriteFile(stale, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatal(err)
	}

	fresh := filepath.Join(dir, "new.pak")
	if err := os.WriteFile(fresh, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	// Subdirectories must survive the sweep.
	if err := os.Mkdir(filepath.Join(dir, "keep"), 0o700); err != nil {
		t.Fatal(err)
	}

	j := &ArtifactPurgeJob{Dir: dir, MaxAge: 24 * time.Hour, Logger: testLogger()}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Error("stale artifact survived purge")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh artifact removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "keep")); err != nil {
		t.Errorf("subdirectory removed: %v", err)
	}
}

func TestArtifactPurgeJob_MissingDir(t *testing.T) {
	t.Parallel()

	j := &ArtifactPurgeJob{
		Dir:    filepath.Join(t.TempDir(), "never-created"),
		MaxAge: time.Hour,
		Logger: testLogger(),
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run on missing dir: %v", err)
	}
}

// fakeTakeStore implements TakeStore for job tests.
type fakeTakeStore struct {
	gotMaxAge time.Duration
	purged    int64
	err       error
}

func (f *fakeTakeStore) Purge(_ context.Context, olderThan time.Duration) (int64, error) {
	f.gotMaxAge = olderThan
	return f.purged, f.err
}

func TestTakePurgeJob_Run(t *testing.T) {
	t.Parallel()

	store := &fakeTakeStore{purged: 3}
	j := &TakePurgeJob{Store: store, MaxAge: 90 * 24 * time.Hour, Logger: testLogger()}

	if j.Name() != "takelog_purge" {
		t.Errorf("name = %q", j.Name())
	}
	if j.Schedule() != "30 3 * * *" {
		t.Errorf("schedule = %q", j.Schedule())
	}

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.gotMaxAge != 90*24*time.Hour {
		t.Errorf("MaxAge passed = %v", store.gotMaxAge)
	}

	store.err = errors.New("db locked")
	if err := j.Run(context.Background()); err == nil {
		t.Error("Run swallowed store error")
	}
}
