// Package storage enforces the retention window over captured media.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"camwatch/internal/logger"
)

// MediaPattern matches stills and their sidecars.
const MediaPattern = "*.jpg*"

// Purger drops journal rows older than a cutoff.
type Purger interface {
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// RetentionService deletes media older than maxAge and then reindexes.
type RetentionService struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	reindex  func() error
	journal  Purger
	logger   *logger.Logger
	now      func() time.Time
}

// NewRetentionService creates the sweeper. reindex and journal may be nil.
func NewRetentionService(dir string, maxAge, interval time.Duration, reindex func() error, journal Purger, logger *logger.Logger) *RetentionService {
	return &RetentionService{
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
		reindex:  reindex,
		journal:  journal,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps immediately and then every interval until ctx is done.
func (s *RetentionService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(); err != nil {
			s.logger.Error("Retention sweep failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep deletes expired media, purges the journal and rebuilds the index.
// Individual delete failures are logged and do not stop the sweep.
func (s *RetentionService) Sweep() (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, MediaPattern))
	if err != nil {
		return 0, fmt.Errorf("failed to list media: %w", err)
	}

	cutoff := s.now().Add(-s.maxAge)
	deleted := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			s.logger.Warning("Failed to delete %s: %v", path, err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Info("Deleted %d files older than %s", deleted, cutoff.Format(time.RFC3339))
	}

	if s.journal != nil {
		if n, err := s.journal.DeleteOlderThan(cutoff); err != nil {
			s.logger.Error("Failed to purge journal: %v", err)
		} else if n > 0 {
			s.logger.Info("Purged %d journal entries", n)
		}
	}

	if s.reindex != nil {
		if err := s.reindex(); err != nil {
			return deleted, fmt.Errorf("failed to reindex: %w", err)
		}
	}
	return deleted, nil
}
