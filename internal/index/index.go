// Package index keeps the in-memory tag → filename index over captured stills.
package index

import (
	"sort"
	"sync"
)

// Synthetic bookkeeping tags.
const (
	TagAll         = "all"
	TagObjects     = "objects"
	TagNoObjects   = "no_objects"
	TagAnnotated   = "w_annotation"
	TagUnannotated = "wo_annotation"
)

// Index maps tags to the set of filenames carrying them, plus each annotated
// file's ordered list of interesting labels. Safe for concurrent use.
//
// Rebuilds scan storage without holding the lock; mutations that arrive
// meanwhile are applied to the live state and queued for replay onto the
// rebuilt state before it is swapped in.
type Index struct {
	mu         sync.RWMutex
	state      *state
	rebuilding bool
	pending    []func(*state)

	rebuildMu sync.Mutex
}

// New returns an empty Index.
func New() *Index {
	return &Index{state: newState()}
}

func (i *Index) apply(op func(*state)) {
	i.mu.Lock()
	defer i.mu.Unlock()

	op(i.state)
	if i.rebuilding {
		i.pending = append(i.pending, op)
	}
}

// Register lists filename under "all" so in-flight captures show up immediately.
func (i *Index) Register(filename string) {
	i.apply(func(s *state) { s.register(filename) })
}

// MarkUnannotated tags filename as captured without annotation.
func (i *Index) MarkUnannotated(filename string) {
	i.apply(func(s *state) { s.markUnannotated(filename) })
}

// MarkAnnotated records the interesting labels for filename and tags it
// accordingly. Calling it again for the same file replaces the previous labels.
func (i *Index) MarkAnnotated(filename string, labels []string) {
	labels = append([]string(nil), labels...)
	i.apply(func(s *state) { s.markAnnotated(filename, labels) })
}

// Files returns the filenames carrying tag, newest first (names sort by time).
func (i *Index) Files(tag string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	set := i.state.tags[tag]
	files := make([]string, 0, len(set))
	for f := range set {
		files = append(files, f)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files
}

// Has reports whether filename carries tag.
func (i *Index) Has(tag, filename string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()

	_, ok := i.state.tags[tag][filename]
	return ok
}

// Labels returns the interesting labels recorded for filename, in detection order.
func (i *Index) Labels(filename string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return append([]string(nil), i.state.labels[filename]...)
}

// TagsOf returns every tag filename carries, sorted.
func (i *Index) TagsOf(filename string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var tags []string
	for tag, set := range i.state.tags {
		if _, ok := set[filename]; ok {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// Counts returns the number of files per tag.
func (i *Index) Counts() map[string]int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	counts := make(map[string]int, len(i.state.tags))
	for tag, set := range i.state.tags {
		counts[tag] = len(set)
	}
	return counts
}

// Snapshot is a consistent copy of the index.
type Snapshot struct {
	Tags   map[string][]string `json:"tags"`
	Labels map[string][]string `json:"labels"`
}

// Snapshot copies the whole index under one read lock.
func (i *Index) Snapshot() Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()

	snap := Snapshot{
		Tags:   make(map[string][]string, len(i.state.tags)),
		Labels: make(map[string][]string, len(i.state.labels)),
	}
	for tag, set := range i.state.tags {
		files := make([]string, 0, len(set))
		for f := range set {
			files = append(files, f)
		}
		sort.Strings(files)
		snap.Tags[tag] = files
	}
	for f, labels := range i.state.labels {
		snap.Labels[f] = append([]string(nil), labels...)
	}
	return snap
}

type state struct {
	tags   map[string]map[string]struct{}
	labels map[string][]string
}

func newState() *state {
	return &state{
		tags:   make(map[string]map[string]struct{}),
		labels: make(map[string][]string),
	}
}

func (s *state) add(tag, filename string) {
	set, ok := s.tags[tag]
	if !ok {
		set = make(map[string]struct{})
		s.tags[tag] = set
	}
	set[filename] = struct{}{}
}

func (s *state) remove(tag, filename string) {
	set, ok := s.tags[tag]
	if !ok {
		return
	}
	delete(set, filename)
	// The "all" bucket stays even when empty so the UI always has a default tag.
	if len(set) == 0 && tag != TagAll {
		delete(s.tags, tag)
	}
}

func (s *state) register(filename string) {
	s.add(TagAll, filename)
}

// isSynthetic guards the bookkeeping tags against labels that happen to share
// their names.
func isSynthetic(tag string) bool {
	switch tag {
	case TagAll, TagObjects, TagNoObjects, TagAnnotated, TagUnannotated:
		return true
	}
	return false
}

func (s *state) clearLabels(filename string) {
	for _, label := range s.labels[filename] {
		if !isSynthetic(label) {
			s.remove(label, filename)
		}
	}
	delete(s.labels, filename)
	s.remove(TagObjects, filename)
	s.remove(TagNoObjects, filename)
}

func (s *state) markUnannotated(filename string) {
	s.clearLabels(filename)
	s.remove(TagAnnotated, filename)
	s.add(TagUnannotated, filename)
	s.add(TagAll, filename)
}

func (s *state) markAnnotated(filename string, labels []string) {
	s.clearLabels(filename)
	s.remove(TagUnannotated, filename)
	s.add(TagAnnotated, filename)
	s.add(TagAll, filename)

	s.labels[filename] = labels
	if len(labels) == 0 {
		s.add(TagNoObjects, filename)
		return
	}
	s.add(TagObjects, filename)
	for _, label := range labels {
		if !isSynthetic(label) {
			s.add(label, filename)
		}
	}
}
