// =============================================================================
// pkg/selection/selection.go - File Selector
// =============================================================================
package selection

import (
	"errors"
	"fmt"
	"sync"

	"seedstream/pkg/api"
)

var (
	// ErrNoFiles is returned when the file table is empty or not yet known.
	ErrNoFiles = errors.New("torrent has no files")
	// ErrIndexOutOfRange is returned for an explicit index outside the table.
	ErrIndexOutOfRange = errors.New("file index out of range")
)

// Resolve picks the concrete file for sel.
func Resolve(files []api.FileEntry, sel api.Selection) (api.FileEntry, error) {
	if len(files) == 0 {
		return api.FileEntry{}, ErrNoFiles
	}
	if i, ok := sel.Index(); ok {
		if i < 0 || i >= len(files) {
			return api.FileEntry{}, fmt.Errorf("%w: %d (0-%d)", ErrIndexOutOfRange, i, len(files)-1)
		}
		return files[i], nil
	}
	return files[Largest(files)], nil
}

// Largest returns the position of the largest file; the first one wins on
// ties. It returns -1 for an empty table.
func Largest(files []api.FileEntry) int {
	best := -1
	var bestSize int64
	for i, f := range files {
		if best < 0 || f.Length > bestSize {
			best = i
			bestSize = f.Length
		}
	}
	return best
}

// State is the session's current selection. The zero value is Auto with
// nothing resolved yet.
type State struct {
	mu       sync.RWMutex
	sel      api.Selection
	resolved *api.FileEntry
}

// Set replaces the selection and, when files are known, resolves it.
// Without files the selection is stored for later and ErrNoFiles returned.
// A selection that fails to resolve leaves the state untouched.
func (s *State) Set(sel api.Selection, files []api.FileEntry) (api.FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(files) == 0 {
		s.sel = sel
		return api.FileEntry{}, ErrNoFiles
	}
	f, err := Resolve(files, sel)
	if err != nil {
		return api.FileEntry{}, err
	}
	s.sel = sel
	s.resolved = &f
	return f, nil
}

// Selection returns the requested selection.
func (s *State) Selection() api.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// Resolved returns the resolved file, if any.
func (s *State) Resolved() (api.FileEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.resolved == nil {
		return api.FileEntry{}, false
	}
	return *s.resolved, true
}
