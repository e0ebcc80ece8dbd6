package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"camwatch/internal/logger"
)

type fakePurger struct {
	cutoff time.Time
	calls  int
}

func (f *fakePurger) DeleteOlderThan(cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	f.calls++
	return 0, nil
}

func touch(t *testing.T, dir, name string, age time.Duration, now time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	mtime := now.Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRetentionService_Sweep(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	day := 24 * time.Hour

	oldStill := touch(t, dir, "old.jpg", 31*day, now)
	oldSidecar := touch(t, dir, "old.jpg.tags", 31*day, now)
	recent := touch(t, dir, "recent.jpg", 29*day, now)
	other := touch(t, dir, "old.mp4", 40*day, now)

	purger := &fakePurger{}
	reindexed := 0
	s := NewRetentionService(dir, 30*day, day, func() error { reindexed++; return nil }, purger, logger.Nop())
	s.now = func() time.Time { return now }

	deleted, err := s.Sweep()
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, expected 2", deleted)
	}
	if exists(oldStill) || exists(oldSidecar) {
		t.Error("expired still and sidecar should be deleted")
	}
	if !exists(recent) || !exists(other) {
		t.Error("recent still and non-media files must be kept")
	}
	if reindexed != 1 {
		t.Errorf("reindex called %d times, expected 1", reindexed)
	}
	if purger.calls != 1 || !purger.cutoff.Equal(now.Add(-30*day)) {
		t.Errorf("unexpected purge: calls=%d cutoff=%v", purger.calls, purger.cutoff)
	}
}

func TestRetentionService_ReindexFailureReported(t *testing.T) {
	s := NewRetentionService(t.TempDir(), time.Hour, time.Hour, func() error { return errors.New("boom") }, nil, logger.Nop())

	if _, err := s.Sweep(); err == nil {
		t.Error("expected reindex error")
	}
}

func TestRetentionService_RunSweepsImmediately(t *testing.T) {
	var sweeps int32
	s := NewRetentionService(t.TempDir(), time.Hour, time.Hour, func() error {
		atomic.AddInt32(&sweeps, 1)
		return nil
	}, nil, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for atomic.LoadInt32(&sweeps) == 0 {
		select {
		case <-deadline:
			t.Fatal("no sweep ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}
