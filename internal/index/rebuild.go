package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"camwatch/internal/logger"
)

// Media file conventions in the storage directory.
const (
	StillExt   = ".jpg"
	SidecarExt = ".tags"
)

// SidecarPath is where the capture command leaves the raw annotation payload
// for a still.
func SidecarPath(stillPath string) string {
	return stillPath + SidecarExt
}

// DeriveFunc turns a sidecar payload into the interesting labels for a still.
type DeriveFunc func(payload []byte) []string

// Rebuild replaces the index contents with what is found in dir. Stills with
// a sidecar are tagged as annotated with labels from derive; stills without
// one are tagged unannotated. A sidecar that cannot be read skips that still
// only. It returns the number of stills indexed.
func (i *Index) Rebuild(dir string, derive DeriveFunc, logger *logger.Logger) (int, error) {
	i.rebuildMu.Lock()
	defer i.rebuildMu.Unlock()

	// Start queueing before listing the directory so that a file written and
	// registered after the listing is replayed onto the new state.
	i.mu.Lock()
	i.rebuilding = true
	i.pending = nil
	i.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		i.mu.Lock()
		i.rebuilding = false
		i.pending = nil
		i.mu.Unlock()
		return 0, fmt.Errorf("failed to read storage directory: %w", err)
	}

	fresh := newState()
	fresh.tags[TagAll] = make(map[string]struct{})
	indexed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, StillExt) {
			continue
		}

		payload, err := os.ReadFile(SidecarPath(filepath.Join(dir, name)))
		switch {
		case err == nil:
			fresh.markAnnotated(name, derive(payload))
		case os.IsNotExist(err):
			fresh.markUnannotated(name)
		default:
			logger.Warning("Skipping %s during reindex: %v", name, err)
			continue
		}
		indexed++
	}

	i.mu.Lock()
	for _, op := range i.pending {
		op(fresh)
	}
	i.state = fresh
	i.pending = nil
	i.rebuilding = false
	i.mu.Unlock()

	return indexed, nil
}
