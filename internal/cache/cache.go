// Package cache implements the Cache Reaper (C9): after a render, it
// scans the rasterized-overlay cache directories and unlinks every PNG
// whose content key was not touched during the run, keeping the cache
// bounded without a TTL (spec §4.5, §4.9). Reaping is advisory: a
// failure to stat or remove one entry is logged and does not fail the
// render, mirroring the teacher's best-effort `defer os.RemoveAll` tidy
// step in `template.go`.
package cache

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Reaper removes cache entries the current run's Rasterizer never
// touched.
type Reaper struct {
	log *logrus.Entry
}

func NewReaper(log *logrus.Entry) *Reaper {
	return &Reaper{log: log}
}

// Reap walks dir (a Rasterizer's containerCacheDir or appCacheDir) and
// removes every *.png entry whose key is absent from touched.
func (r *Reaper) Reap(dir string, touched map[string]bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.WithField("dir", dir).WithError(err).Warn("cache reap: could not list directory")
		}
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".png") {
			continue
		}
		key := strings.TrimSuffix(name, ".png")
		if touched[key] {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			r.log.WithField("path", path).WithError(err).Warn("cache reap: could not remove stale entry")
			continue
		}
		removed++
	}
	if removed > 0 {
		r.log.WithFields(logrus.Fields{"dir": dir, "removed": removed}).Info("cache reap: removed stale entries")
	}
}

// ReapAll reaps every directory in dirs, each against the same touched
// set (container and app caches share Rasterizer.Touched's key space).
func (r *Reaper) ReapAll(dirs []string, touched map[string]bool) {
	for _, dir := range dirs {
		r.Reap(dir, touched)
	}
}
