package config

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Watcher detects configuration file changes by modification time.
// The control loop probes it once per cycle.
type Watcher struct {
	path      string
	lastCheck time.Time
}

// NewWatcher creates a watcher for the given config file path. The baseline
// is the file's current modification time, so any later write is reported
// even when the wall clock is already past its mtime.
func NewWatcher(path string) *Watcher {
	w := &Watcher{path: path, lastCheck: time.Now()}
	if info, err := os.Stat(path); err == nil {
		w.lastCheck = info.ModTime()
	}
	return w
}

// Path returns the watched config file path
func (w *Watcher) Path() string {
	return w.path
}

// Changed reports whether the config file was modified since the last check.
// A stat failure is logged and treated as "no change".
func (w *Watcher) Changed() (time.Time, bool) {
	info, err := os.Stat(w.path)
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("Failed to stat config file")
		return time.Time{}, false
	}
	if info.ModTime().After(w.lastCheck) {
		w.lastCheck = info.ModTime()
		return info.ModTime(), true
	}
	return time.Time{}, false
}

// Reload re-reads and parses the watched config file
func (w *Watcher) Reload() (*Config, error) {
	return Load(w.path)
}
