// Package scratch tracks short-lived files so every exit path releases them.
package scratch

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"mygizmo/internal/naming"
)

// Set is a group of temp paths released together.
// The zero value is ready to use.
type Set struct {
	mu    sync.Mutex
	paths []string
}

// Track adds path to the set and returns it.
func (s *Set) Track(path string) string {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
	return path
}

// Path returns a fresh tracked path "<dir>/<token>_<name>".
func (s *Set) Path(dir, name string) string {
	return s.Track(filepath.Join(dir, naming.Prefixed(name)))
}

// Release removes every tracked path. Removal failures are logged only.
func (s *Set) Release() {
	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	for _, p := range paths {
		Remove(p)
	}
}

// Remove deletes path, logging anything but "already gone".
func Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("failed to remove temp file")
	}
}
