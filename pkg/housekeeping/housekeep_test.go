package housekeeping

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/triagekit/engine/pkg/logging"
)

func TestHousekeepPrunesOldStagingRoot(t *testing.T) {
	parent := t.TempDir()
	oldRoot := filepath.Join(parent, "stale-run")
	require.NoError(t, os.MkdirAll(oldRoot, 0o755))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldRoot, old, old))

	logger := logging.NewLogger(logging.LevelError, &bytes.Buffer{})
	Housekeep(parent, logger)

	_, err := os.Stat(oldRoot)
	require.True(t, os.IsNotExist(err))
}

func TestHousekeepKeepsRecentStagingRoot(t *testing.T) {
	parent := t.TempDir()
	recentRoot := filepath.Join(parent, "active-run")
	require.NoError(t, os.MkdirAll(recentRoot, 0o755))

	logger := logging.NewLogger(logging.LevelError, &bytes.Buffer{})
	Housekeep(parent, logger)

	_, err := os.Stat(recentRoot)
	require.NoError(t, err)
}

func TestHousekeepMissingParentIsNotAnError(t *testing.T) {
	logger := logging.NewLogger(logging.LevelError, &bytes.Buffer{})
	Housekeep(filepath.Join(t.TempDir(), "does-not-exist"), logger)
}
