// Package policy decides between full annotated capture and a single snapshot.
package policy

import (
	"fmt"
	"os"
	"strings"
	"time"

	"camwatch/internal/logger"
)

// OccupiedMarker is the substring that marks the premises as occupied.
const OccupiedMarker = "athome"

// ShouldCaptureFull reports whether an event warrants still+annotation+video.
// With both night bounds at 0 the night window is disabled and only occupancy
// matters. Otherwise the window is [nightBegin, 24) ∪ [0, nightEnd].
func ShouldCaptureFull(occupied bool, hour, nightBegin, nightEnd int) bool {
	if !occupied {
		return true
	}
	if nightBegin == 0 && nightEnd == 0 {
		return false
	}
	return hour >= nightBegin || hour <= nightEnd
}

// OccupancyChecker reports whether someone is at home.
type OccupancyChecker interface {
	Occupied() (bool, error)
}

// OccupancyFile reads occupancy from a marker file maintained by another process,
// e.g. a cron job writing "athome" or "noonehome".
type OccupancyFile struct {
	Path string
}

// Occupied returns false with an error when the file cannot be read.
func (o OccupancyFile) Occupied() (bool, error) {
	data, err := os.ReadFile(o.Path)
	if err != nil {
		return false, fmt.Errorf("failed to read occupancy file: %w", err)
	}
	return strings.Contains(string(data), OccupiedMarker), nil
}

// Policy combines the occupancy marker with the configured night window.
type Policy struct {
	occupancy  OccupancyChecker
	nightBegin int
	nightEnd   int
	now        func() time.Time
	logger     *logger.Logger
}

// New creates a Policy using the local wall clock.
func New(occupancy OccupancyChecker, nightBegin, nightEnd int, logger *logger.Logger) *Policy {
	return &Policy{
		occupancy:  occupancy,
		nightBegin: nightBegin,
		nightEnd:   nightEnd,
		now:        time.Now,
		logger:     logger,
	}
}

// WithClock replaces the clock used to read the current hour.
func (p *Policy) WithClock(now func() time.Time) *Policy {
	p.now = now
	return p
}

// FullCapture evaluates the policy for an event happening now. An unreadable
// occupancy file counts as nobody home.
func (p *Policy) FullCapture() bool {
	occupied, err := p.occupancy.Occupied()
	if err != nil {
		p.logger.Warning("Occupancy unknown, assuming nobody home: %v", err)
		occupied = false
	}
	return ShouldCaptureFull(occupied, p.now().Hour(), p.nightBegin, p.nightEnd)
}
