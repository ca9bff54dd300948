package planner

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/triagekit/engine/pkg/manifest"
	"github.com/triagekit/engine/pkg/platform"
)

// fakeAdapter implements platform.Adapter against the real local filesystem
// so planner tests can exercise regex discovery without a platform build
// tag dependency.
type fakeAdapter struct{}

func (fakeAdapter) OpenForRead(ctx context.Context, path string, opts platform.OpenOptions) (io.ReadCloser, error) {
	return os.Open(path)
}

func (fakeAdapter) Stat(ctx context.Context, path string, opts platform.OpenOptions) (platform.FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return platform.FileInfo{}, err
	}
	return platform.FileInfo{Size: info.Size(), IsDir: info.IsDir(), ModTime: info.ModTime()}, nil
}

func (fakeAdapter) EnumerateDir(ctx context.Context, dir string, opts platform.OpenOptions) ([]platform.DirEntry, error) {
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

func (fakeAdapter) OpenProcess(ctx context.Context, pid int) (platform.ProcessHandle, error) {
	return nil, nil
}

func (fakeAdapter) EnumerateRegions(ctx context.Context, handle platform.ProcessHandle) ([]platform.MemoryRegion, error) {
	return nil, nil
}

func (fakeAdapter) ReadMemory(ctx context.Context, handle platform.ProcessHandle, address uint64, buffer []byte) (int, error) {
	return 0, nil
}

func TestPlanRegexLogPickup(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.log"), "x")
	mustWriteFile(t, filepath.Join(root, "a.log.gz"), "x")
	mustWriteFile(t, filepath.Join(root, "sub", "b.log"), "x")
	mustWriteFile(t, filepath.Join(root, "sub", "deep", "c.log"), "x")

	maxDepth := 2
	m := &manifest.Manifest{
		Version: manifest.SupportedVersion,
		Artifacts: []manifest.ArtifactDefinition{
			{
				Name:            "logs",
				Kind:            manifest.NeutralKind(manifest.KindLogs),
				SourcePath:      root,
				DestinationName: "logs",
				Required:        true,
				Regex: &manifest.RegexSpec{
					Enabled:        true,
					Recursive:      true,
					IncludePattern: `\.log$`,
					ExcludePattern: `\.gz$`,
					MaxDepth:       &maxDepth,
				},
			},
		},
	}

	tasks, err := Plan(context.Background(), m, fakeAdapter{}, Options{Host: manifest.FamilyP})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var destinations []string
	for _, task := range tasks {
		destinations = append(destinations, task.DestinationRelPath)
	}

	want := map[string]bool{"logs/a.log": true, "logs/sub/b.log": true}
	if len(destinations) != len(want) {
		t.Fatalf("expected %d tasks, got %d: %v", len(want), len(destinations), destinations)
	}
	for _, d := range destinations {
		if !want[d] {
			t.Fatalf("unexpected destination %q in %v", d, destinations)
		}
	}
}

func TestPlanUnknownVariableFatalWhenRequired(t *testing.T) {
	m := &manifest.Manifest{
		Version: manifest.SupportedVersion,
		Artifacts: []manifest.ArtifactDefinition{
			{
				Name:            "missing-var",
				Kind:            manifest.NeutralKind(manifest.KindLogs),
				SourcePath:      "$DOES_NOT_EXIST/logs",
				DestinationName: "logs",
				Required:        true,
			},
		},
	}

	_, err := Plan(context.Background(), m, fakeAdapter{}, Options{Host: manifest.FamilyP})
	if err == nil {
		t.Fatalf("expected a fatal planning error")
	}
}

func TestPlanDropsUnresolvableOptionalArtifact(t *testing.T) {
	m := &manifest.Manifest{
		Version: manifest.SupportedVersion,
		Artifacts: []manifest.ArtifactDefinition{
			{
				Name:            "missing-var",
				Kind:            manifest.NeutralKind(manifest.KindLogs),
				SourcePath:      "$DOES_NOT_EXIST/logs",
				DestinationName: "logs",
				Required:        false,
			},
		},
	}

	tasks, err := Plan(context.Background(), m, fakeAdapter{}, Options{Host: manifest.FamilyP})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}

func TestPlanFamilyFiltering(t *testing.T) {
	m := &manifest.Manifest{
		Version: manifest.SupportedVersion,
		Artifacts: []manifest.ArtifactDefinition{
			{
				Name:            "registry",
				Kind:            manifest.FamilyScopedKind(manifest.FamilyL, manifest.SubkindRegistry),
				SourcePath:      t.TempDir(),
				DestinationName: "registry",
				Required:        false,
			},
		},
	}

	tasks, err := Plan(context.Background(), m, fakeAdapter{}, Options{Host: manifest.FamilyP})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected family-scoped artifact to be filtered out on a different host, got %d tasks", len(tasks))
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
