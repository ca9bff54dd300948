package bodyfile

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Generate walks stagingRoot, one goroutine per directory per §4.8, and
// returns the bodyfile lines sorted by relative path for deterministic
// output.
func Generate(ctx context.Context, stagingRoot string, opts Options) ([]string, error) {
	var mu sync.Mutex
	var lines []string

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return walkDirectory(groupCtx, group, stagingRoot, stagingRoot, opts, &mu, &lines)
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	// Every line starts with its hash column, so compare from the name
	// column onward to order by relative path.
	sort.Slice(lines, func(i, j int) bool {
		return lines[i][strings.IndexByte(lines[i], '|')+1:] < lines[j][strings.IndexByte(lines[j], '|')+1:]
	})
	return lines, nil
}

// walkDirectory processes one directory's direct children, recursing into
// subdirectories as independent errgroup tasks so sibling directories are
// walked concurrently.
func walkDirectory(ctx context.Context, group *errgroup.Group, root, dir string, opts Options, mu *sync.Mutex, lines *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		entry := entry
		fullPath := filepath.Join(dir, entry.Name())
		relativePath := filepath.ToSlash(mustRel(root, fullPath))

		if IsSkipped(opts, relativePath) {
			continue
		}

		if entry.IsDir() {
			group.Go(func() error {
				return walkDirectory(ctx, group, root, fullPath, opts, mu, lines)
			})
			continue
		}

		record, err := statRecord(fullPath, relativePath)
		if err != nil {
			continue
		}

		hash, err := HashFor(opts, relativePath, record.Size, func() (io.ReadCloser, error) {
			return os.Open(fullPath)
		})
		if err != nil {
			hash = "0"
		}

		line := Line(record, hash, opts)

		mu.Lock()
		*lines = append(*lines, line)
		mu.Unlock()
	}

	return nil
}

func mustRel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
