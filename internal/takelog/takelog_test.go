package takelog

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "takes.db"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	s.now = func() time.Time {
		return time.Date(2024, time.March, 7, 10, 0, 0, 0, time.UTC)
	}
	ctx := context.Background()

	e, err := s.Record(ctx, "sceneA", 3)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if e.Name != "sceneA_T3" {
		t.Errorf("Name = %q, want %q", e.Name, "sceneA_T3")
	}
	if e.Day != "240307" {
		t.Errorf("Day = %q, want %q", e.Day, "240307")
	}
	if e.ID == 0 {
		t.Error("ID not assigned")
	}

	if _, err := s.Record(ctx, "sceneA", 4); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List len = %d, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Name != "sceneA_T4" || entries[1].Name != "sceneA_T3" {
		t.Errorf("List order = %q, %q", entries[0].Name, entries[1].Name)
	}
	if !entries[0].RecordedAt.Equal(time.Date(2024, time.March, 7, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("RecordedAt = %v", entries[0].RecordedAt)
	}
}

func TestNextTake(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	next, err := s.NextTake(ctx, "sceneB")
	if err != nil {
		t.Fatalf("NextTake: %v", err)
	}
	if next != 1 {
		t.Errorf("NextTake on empty slate = %d, want 1", next)
	}

	if _, err := s.Record(ctx, "sceneB", next); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := s.Record(ctx, "sceneB", 7); err != nil {
		t.Fatalf("Record: %v", err)
	}

	next, err = s.NextTake(ctx, "sceneB")
	if err != nil {
		t.Fatalf("NextTake: %v", err)
	}
	if next != 8 {
		t.Errorf("NextTake = %d, want 8", next)
	}

	// Other slates are independent.
	next, err = s.NextTake(ctx, "sceneC")
	if err != nil {
		t.Fatalf("NextTake: %v", err)
	}
	if next != 1 {
		t.Errorf("NextTake for untouched slate = %d, want 1", next)
	}
}

func TestPurge(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	old := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return old }
	if _, err := s.Record(ctx, "sceneA", 1); err != nil {
		t.Fatalf("Record: %v", err)
	}

	recent := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return recent }
	if _, err := s.Record(ctx, "sceneA", 2); err != nil {
		t.Fatalf("Record: %v", err)
	}

	purged, err := s.Purge(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if purged != 1 {
		t.Errorf("Purge removed %d entries, want 1", purged)
	}

	entries, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "sceneA_T2" {
		t.Errorf("surviving entries = %+v", entries)
	}
}
