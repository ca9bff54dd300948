package collector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/triagekit/engine/pkg/manifest"
	"github.com/triagekit/engine/pkg/summary"
)

func TestNewStagingRootIsUniqueAndWritable(t *testing.T) {
	parent := t.TempDir()

	first, err := newStagingRoot(parent)
	require.NoError(t, err)
	second, err := newStagingRoot(parent)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.DirExists(t, first)
	require.DirExists(t, second)

	require.NoError(t, os.WriteFile(filepath.Join(first, "probe"), []byte("x"), 0o644))
}

func TestArchiveTimestampFormat(t *testing.T) {
	stamp := archiveTimestamp(time.Date(2026, 7, 30, 9, 5, 3, 0, time.UTC))
	require.Equal(t, "20260730_090503", stamp)
}

// TestRunStagedOutputWithoutArchiving exercises the full Run orchestration
// with compress_artifacts disabled, volatile collection disabled, and no
// destination configured, so the only I/O is against the local staging
// directory the test owns.
func TestRunStagedOutputWithoutArchiving(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "source")
	require.NoError(t, os.MkdirAll(source, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(source, "note.txt"), []byte("evidence"), 0o644))

	m := &manifest.Manifest{
		Version: manifest.SupportedVersion,
		GlobalOptions: map[string]string{
			"compress_artifacts": "false",
			"generate_bodyfile":  "true",
		},
		Artifacts: []manifest.ArtifactDefinition{
			{
				Name:            "notes",
				Kind:            manifest.NeutralKind(manifest.KindUserData),
				SourcePath:      source,
				DestinationName: "notes",
				Required:        true,
			},
		},
	}

	cfg := Configuration{
		Manifest:       m,
		Host:           manifest.FamilyP,
		StagingParent:  t.TempDir(),
		NoVolatileData: true,
		Concurrency:    2,
		ComputeWorkers: 1,
	}

	final, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, final)
	require.Equal(t, summary.StatusOK, final.OverallStatus)
	require.Len(t, final.Acquired, 1)
	require.Empty(t, final.Failed)
}

func TestRunRejectsInvalidManifest(t *testing.T) {
	cfg := Configuration{
		Manifest: &manifest.Manifest{Version: "unsupported"},
	}

	_, err := Run(context.Background(), cfg)
	require.Error(t, err)
}
