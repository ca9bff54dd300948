package collector

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/triagekit/engine/pkg/archive"
	"github.com/triagekit/engine/pkg/manifest"
	"github.com/triagekit/engine/pkg/summary"
	"github.com/triagekit/engine/pkg/volatile"
)

func TestWriteVolatileRecordsWritesFiveFiles(t *testing.T) {
	root := t.TempDir()
	snapshot := &volatile.Snapshot{
		Processes: []volatile.ProcessRecord{{PID: 1, Name: "init"}},
	}

	require.NoError(t, writeVolatileRecords(root, snapshot))

	dir := filepath.Join(root, volatileSubdir)
	for _, name := range []string{"system-info.json", "processes.json", "network-connections.json", "memory.json", "disks.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, "missing %s", name)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "processes.json"))
	require.NoError(t, err)
	var processes []volatile.ProcessRecord
	require.NoError(t, json.Unmarshal(raw, &processes))
	require.Len(t, processes, 1)
	require.Equal(t, "init", processes[0].Name)
}

func TestWriteStagedSummaryWritesBodyfileAndSummary(t *testing.T) {
	root := t.TempDir()
	final := summary.CollectionSummary{RunID: "abc", Hostname: "host-1"}

	require.NoError(t, writeStagedSummary(root, "host-1", []string{"0|line one|...", "0|line two|..."}, final))

	body, err := os.ReadFile(filepath.Join(root, "host-1.body"))
	require.NoError(t, err)
	require.Equal(t, "0|line one|...\n0|line two|...\n", string(body))

	raw, err := os.ReadFile(filepath.Join(root, "collection_summary.json"))
	require.NoError(t, err)
	var decoded summary.CollectionSummary
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "abc", decoded.RunID)
}

func TestStagingFileSinkCreatesNestedDirectories(t *testing.T) {
	root := t.TempDir()
	sink := stagingFileSink{root: root}

	writer, err := sink.Create("process_memory/bash_123/heap_0.dmp")
	require.NoError(t, err)
	_, err = writer.Write([]byte("dump"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	data, err := os.ReadFile(filepath.Join(root, "process_memory", "bash_123", "heap_0.dmp"))
	require.NoError(t, err)
	require.Equal(t, "dump", string(data))
}

func TestArchiveStagingTreeWalksEveryRegularFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "fs", "var", "log"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "fs", "var", "log", "a.log"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "collection_summary.json"), []byte("{}"), 0o644))

	var buf bytes.Buffer
	pipeline := archive.New(&buf, nil)
	require.NoError(t, archiveStagingTree(pipeline, root))
	require.NoError(t, pipeline.Close())

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range reader.File {
		names[f.Name] = true
	}
	require.True(t, names[filepath.ToSlash(filepath.Join("fs", "var", "log", "a.log"))])
	require.True(t, names["collection_summary.json"])
}

func TestGenerateBodyfileAtLeastOneLinePerFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("content"), 0o644))

	lines, err := generateBodyfile(context.Background(), root, manifest.GlobalOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, lines)
}
