package collector

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/triagekit/engine/pkg/executor"
	"github.com/triagekit/engine/pkg/manifest"
	"github.com/triagekit/engine/pkg/planner"
	"github.com/triagekit/engine/pkg/platform"
	"github.com/triagekit/engine/pkg/summary"
	"github.com/triagekit/engine/pkg/triageerrors"
)

// fakeAdapter implements platform.Adapter against the real local filesystem,
// matching the planner package's own test adapter, so collector tests can
// exercise copyFile/copyDirectory without an OS-specific build tag.
type fakeAdapter struct{}

func (fakeAdapter) OpenForRead(_ context.Context, path string, _ platform.OpenOptions) (io.ReadCloser, error) {
	return os.Open(path)
}

func (fakeAdapter) Stat(_ context.Context, path string, _ platform.OpenOptions) (platform.FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return platform.FileInfo{}, err
	}
	return platform.FileInfo{Size: info.Size(), IsDir: info.IsDir(), ModTime: info.ModTime()}, nil
}

func (fakeAdapter) EnumerateDir(_ context.Context, dir string, _ platform.OpenOptions) ([]platform.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var results []platform.DirEntry
	for _, e := range entries {
		childPath := filepath.Join(dir, e.Name())
		info, err := os.Lstat(childPath)
		if err != nil {
			continue
		}
		results = append(results, platform.DirEntry{Path: childPath, Info: platform.FileInfo{Size: info.Size(), IsDir: info.IsDir(), ModTime: info.ModTime()}})
	}
	return results, nil
}

func (fakeAdapter) OpenProcess(_ context.Context, pid int) (platform.ProcessHandle, error) {
	return nil, nil
}

func (fakeAdapter) EnumerateRegions(_ context.Context, _ platform.ProcessHandle) ([]platform.MemoryRegion, error) {
	return nil, nil
}

func (fakeAdapter) ReadMemory(_ context.Context, _ platform.ProcessHandle, _ uint64, _ []byte) (int, error) {
	return 0, nil
}

func TestCopyFileHashesContent(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "evidence.txt")
	require.NoError(t, os.WriteFile(source, []byte("hello world"), 0o644))

	destination := filepath.Join(root, "staged", "evidence.txt")
	written, digest, err := copyFile(context.Background(), fakeAdapter{}, source, destination, manifest.GlobalOptions{})
	require.NoError(t, err)
	require.EqualValues(t, len("hello world"), written)
	require.NotEmpty(t, digest)

	staged, err := os.ReadFile(destination)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(staged))
}

func TestCopyFileRejectsOversizedSourceWithoutOpening(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "big.bin")
	require.NoError(t, os.WriteFile(source, make([]byte, 100), 0o644))

	destination := filepath.Join(root, "staged", "big.bin")
	_, _, err := copyFile(context.Background(), fakeAdapter{}, source, destination, manifest.GlobalOptions{MaxFileSizeBytes: 10})
	require.Error(t, err)

	code, ok := triageerrors.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, triageerrors.CodeSizeLimitExceeded, code)

	_, statErr := os.Stat(destination)
	require.True(t, os.IsNotExist(statErr), "destination must not be created for a rejected source")
}

func TestCopyFileRespectsCancelledContext(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "large.bin")
	require.NoError(t, os.WriteFile(source, make([]byte, 1<<20), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	destination := filepath.Join(root, "staged", "large.bin")
	_, _, err := copyFile(ctx, fakeAdapter{}, source, destination, manifest.GlobalOptions{})
	require.Error(t, err)

	code, ok := triageerrors.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, triageerrors.CodeCancelled, code)
}

func TestCopyDirectorySkipsOversizedMemberButContinues(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "small.log"), []byte("ok"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "huge.log"), make([]byte, 1000), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nested", "child.log"), []byte("nested"), 0o644))

	destination := filepath.Join(t.TempDir(), "staged")
	total, err := copyDirectory(context.Background(), fakeAdapter{}, root, destination, manifest.GlobalOptions{MaxFileSizeBytes: 100})
	require.NoError(t, err)
	require.EqualValues(t, len("ok")+len("nested"), total)

	_, err = os.Stat(filepath.Join(destination, "small.log"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(destination, "nested", "child.log"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(destination, "huge.log"))
	require.True(t, os.IsNotExist(err), "oversized member must be skipped, not staged")
}

func TestClassifyTaskErrorLockedRespectsSkipOption(t *testing.T) {
	lockedErr := triageerrors.New(triageerrors.CodeLocked, "file is locked")

	var skipped executor.CollectionResult
	classifyTaskError(&skipped, lockedErr, manifest.GlobalOptions{SkipLockedFiles: true})
	require.Equal(t, executor.StatusSkippedFilter, skipped.Status)

	var partial executor.CollectionResult
	classifyTaskError(&partial, lockedErr, manifest.GlobalOptions{SkipLockedFiles: false})
	require.Equal(t, executor.StatusLockedPartial, partial.Status)
}

func TestClassifyTaskErrorMapsEveryKnownCode(t *testing.T) {
	cases := []struct {
		code triageerrors.Code
		want executor.Status
	}{
		{triageerrors.CodeSizeLimitExceeded, executor.StatusFailedSizeLimit},
		{triageerrors.CodePermissionDenied, executor.StatusFailedPermission},
		{triageerrors.CodeNotFound, executor.StatusFailedNotFound},
		{triageerrors.CodeCancelled, executor.StatusCancelled},
		{triageerrors.CodeIoError, executor.StatusFailedIO},
	}

	for _, c := range cases {
		var result executor.CollectionResult
		classifyTaskError(&result, triageerrors.New(c.code, "boom"), manifest.GlobalOptions{})
		require.Equal(t, c.want, result.Status, "code %s", c.code)
	}
}

func TestRegisterPlannedArtifactsIncludesZeroTaskArtifact(t *testing.T) {
	m := &manifest.Manifest{
		Version: manifest.SupportedVersion,
		Artifacts: []manifest.ArtifactDefinition{
			{
				Name:            "unmatched",
				Kind:            manifest.NeutralKind(manifest.KindLogs),
				SourcePath:      t.TempDir(),
				DestinationName: "unmatched",
				Required:        true,
				Regex: &manifest.RegexSpec{
					Enabled:        true,
					IncludePattern: `\.nonexistent-extension$`,
				},
			},
			{
				Name:            "wrong-family",
				Kind:            manifest.FamilyScopedKind(manifest.FamilyL, manifest.SubkindRegistry),
				SourcePath:      t.TempDir(),
				DestinationName: "registry",
				Required:        false,
			},
		},
	}

	opts := planner.Options{Host: manifest.FamilyP}
	builder := summary.NewBuilder("test-host")
	registerPlannedArtifacts(builder, m, opts)

	final := builder.Build()
	require.Len(t, final.Failed, 1)
	require.Equal(t, "unmatched", final.Failed[0].ArtifactName)
	require.Empty(t, final.Acquired)
}
