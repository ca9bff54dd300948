package housekeeping

import (
	"os"
	"path/filepath"
	"time"

	"github.com/triagekit/engine/pkg/logging"
	"github.com/triagekit/engine/pkg/must"
)

const (
	// maximumStagingRootAge is the maximum allowed age of an orphaned
	// staging root, left behind by a collection run that aborted before
	// cleaning up after itself, before it is pruned.
	maximumStagingRootAge = 24 * time.Hour
)

// Housekeep prunes orphaned staging roots under stagingParent older than
// maximumStagingRootAge, run once at engine init. A missing stagingParent is
// not an error: there is nothing to prune on a fresh install.
func Housekeep(stagingParent string, logger *logging.Logger) {
	housekeepStagingRoots(stagingParent, logger)
}

// housekeepStagingRoots performs housekeeping of staging roots left over
// from aborted collection runs.
func housekeepStagingRoots(stagingParent string, logger *logging.Logger) {
	stagingDirectoryContents, err := os.ReadDir(stagingParent)
	if err != nil {
		return
	}

	now := time.Now()
	for _, entry := range stagingDirectoryContents {
		if !entry.IsDir() {
			continue
		}

		fullPath := filepath.Join(stagingParent, entry.Name())
		if stat, err := os.Stat(fullPath); err != nil {
			continue
		} else if now.Sub(stat.ModTime()) > maximumStagingRootAge {
			must.Succeed(os.RemoveAll(fullPath), "remove orphaned staging root "+fullPath, logger)
		}
	}
}
