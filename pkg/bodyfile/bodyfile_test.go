package bodyfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineHasElevenFields(t *testing.T) {
	record := Record{RelativePath: "fs/var/log/a.log", Size: 1024}
	line := Line(record, "abc123", Options{})
	require.Len(t, strings.Split(line, "|"), 11)
}

func TestLineTimestampFormats(t *testing.T) {
	record := Record{RelativePath: "fs/a"}
	epochLine := Line(record, "0", Options{UseISO8601: false})
	require.Contains(t, strings.Split(epochLine, "|")[7], "0")

	iso := Line(record, "0", Options{UseISO8601: true})
	require.Equal(t, "", strings.Split(iso, "|")[7])
}

func TestIsSkipped(t *testing.T) {
	opts := Options{SkipPaths: []string{"fs/proc/"}}
	require.True(t, IsSkipped(opts, "fs/proc/1/maps"))
	require.False(t, IsSkipped(opts, "fs/var/log/a.log"))
}

func TestGenerateDeterministicOrderAndHashCutoff(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "small.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "large.txt"), make([]byte, 2000), 0o644))

	opts := Options{CalculateHash: true, HashMaxSizeBytes: 1000}
	lines, err := Generate(context.Background(), dir, opts)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	// Lines come back ordered by relative path, whatever their hashes.
	require.Equal(t, "empty.txt", strings.Split(lines[0], "|")[1])
	require.Equal(t, "small.txt", strings.Split(lines[1], "|")[1])
	require.Equal(t, "sub/large.txt", strings.Split(lines[2], "|")[1])

	// The oversized file's hash column must be the skip marker "0".
	for _, line := range lines {
		fields := strings.Split(line, "|")
		require.Len(t, fields, 11)
		if strings.Contains(fields[1], "large.txt") {
			require.Equal(t, "0", fields[0])
		}
	}
}
