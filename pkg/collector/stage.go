package collector

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/triagekit/engine/pkg/archive"
	"github.com/triagekit/engine/pkg/bodyfile"
	"github.com/triagekit/engine/pkg/manifest"
	"github.com/triagekit/engine/pkg/stream"
	"github.com/triagekit/engine/pkg/summary"
	"github.com/triagekit/engine/pkg/volatile"
)

const volatileSubdir = "volatile"

// writeVolatileRecords serializes each of snapshot's five records as a
// separate JSON file under stagingRoot/volatile, matching §6's output
// container layout.
func writeVolatileRecords(stagingRoot string, snapshot *volatile.Snapshot) error {
	dir := filepath.Join(stagingRoot, volatileSubdir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	records := map[string]any{
		"system-info.json":          snapshot.SystemFacts,
		"processes.json":            snapshot.Processes,
		"network-connections.json":  snapshot.Network,
		"memory.json":               snapshot.Memory,
		"disks.json":                snapshot.Disks,
	}

	for name, record := range records {
		if err := writeJSONFile(filepath.Join(dir, name), record); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// generateBodyfile walks stagingRoot producing the Sleuthkit-compatible
// timeline lines for every staged file.
func generateBodyfile(ctx context.Context, stagingRoot string, opts manifest.GlobalOptions) ([]string, error) {
	return bodyfile.Generate(ctx, stagingRoot, bodyfile.Options{
		CalculateHash:    opts.BodyfileCalculateHash,
		HashMaxSizeBytes: opts.BodyfileHashMaxSizeBytes,
		SkipPaths:        opts.BodyfileSkipPaths,
		UseISO8601:       opts.BodyfileUseISO8601,
	})
}

// writeStagedSummary writes the bodyfile and collection_summary.json
// directly into stagingRoot, for the compress_artifacts=false case where the
// staging directory itself is the driver-visible output.
func writeStagedSummary(stagingRoot, hostname string, bodyLines []string, final summary.CollectionSummary) error {
	if len(bodyLines) > 0 {
		if err := writeBodyfileEntry(filepath.Join(stagingRoot, hostname+".body"), bodyLines); err != nil {
			return err
		}
	}
	return writeJSONFile(filepath.Join(stagingRoot, "collection_summary.json"), final)
}

// writeBodyfileEntry writes lines through a buffered writer, since bodyfiles
// can run to hundreds of thousands of lines; the flush and the underlying
// file both need to close, in that order, so a single MultiCloser wraps a
// FlushCloser view of the buffer around the file itself.
func writeBodyfileEntry(path string, lines []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	buffered := bufio.NewWriter(file)
	closer := stream.NewMultiCloser(stream.NewFlushCloser(buffered), file)
	defer closer.Close()

	for _, line := range lines {
		if _, err := io.WriteString(buffered, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// stagingFileSink implements memory.FileSink over a real directory tree, so
// the bodyfile walk and the final archive pass see memory dumps exactly as
// they see every other staged file.
type stagingFileSink struct {
	root string
}

func (s stagingFileSink) Create(relativePath string) (io.WriteCloser, error) {
	full := filepath.Join(s.root, filepath.FromSlash(relativePath))
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return nil, err
	}
	return os.Create(full)
}

// archiveStagingTree walks stagingRoot, writing every regular file into
// pipeline as an entry at its path relative to stagingRoot.
func archiveStagingTree(pipeline *archive.Pipeline, stagingRoot string) error {
	return filepath.WalkDir(stagingRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		relative, err := filepath.Rel(stagingRoot, path)
		if err != nil {
			return err
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		sink, err := pipeline.CreateEntry(relative, info.ModTime(), info.Size())
		if err != nil {
			return err
		}
		defer sink.Close()

		source, err := os.Open(path)
		if err != nil {
			return err
		}
		defer source.Close()

		_, err = io.Copy(sink, source)
		return err
	})
}
