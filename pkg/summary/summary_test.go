package summary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/triagekit/engine/pkg/executor"
)

func TestBuildOKWhenEverythingSucceeds(t *testing.T) {
	b := NewBuilder("host1")
	b.RegisterArtifact("syslog", 1, true)
	b.AddResult(executor.CollectionResult{TaskID: 1, OriginArtifactName: "syslog", Status: executor.StatusOK})

	s := b.Build()
	require.Equal(t, StatusOK, s.OverallStatus)
	require.Len(t, s.Acquired, 1)
	require.Len(t, s.Failed, 0)
}

func TestBuildDegradedWhenRequiredArtifactFails(t *testing.T) {
	b := NewBuilder("host1")
	b.RegisterArtifact("hive", 1, true)
	b.AddResult(executor.CollectionResult{TaskID: 1, OriginArtifactName: "hive", Status: executor.StatusFailedPermission})

	s := b.Build()
	require.Equal(t, StatusDegraded, s.OverallStatus)
	require.Len(t, s.Failed, 1)
}

func TestBuildDegradedWhenRequiredArtifactYieldsZeroTasks(t *testing.T) {
	b := NewBuilder("host1")
	b.RegisterArtifact("missing", 0, true)
	// No tasks/results registered for "missing" beyond the artifact record
	// itself, simulating a regex expansion that matched nothing.
	delete(b.artifactTasks, "missing")

	s := b.Build()
	require.Equal(t, StatusDegraded, s.OverallStatus)
}

func TestBuildNotDegradedWhenOptionalArtifactFails(t *testing.T) {
	b := NewBuilder("host1")
	b.RegisterArtifact("optional", 1, false)
	b.AddResult(executor.CollectionResult{TaskID: 1, OriginArtifactName: "optional", Status: executor.StatusFailedNotFound})

	s := b.Build()
	require.Equal(t, StatusOK, s.OverallStatus)
	require.Len(t, s.Failed, 1)
}

func TestBuildFailedWhenCancelled(t *testing.T) {
	b := NewBuilder("host1")
	b.SetCancelled()

	s := b.Build()
	require.Equal(t, StatusFailed, s.OverallStatus)
	require.True(t, s.Cancelled)
}
