package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sweep removes staged files last modified more than olderThan ago. Such
// files belong to uploads whose process died before promoting them.
// Returns the number of files removed.
func (a *Area) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return 0, fmt.Errorf("reading staging directory: %w", err)
	}

	cutoff := a.clock.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), Suffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed concurrently.
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(a.dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			a.logger.Warn("removing orphaned upload", "path", path, "error", err)
			continue
		}
		a.logger.Info("removed orphaned upload", "path", path, "modified", info.ModTime())
		removed++
	}
	return removed, nil
}
