//go:build !windows

package platform

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/triagekit/engine/pkg/triageerrors"
)

// unixFileAccess provides the OpenForRead/Stat/EnumerateDir trio shared by
// the proc-based (family P) and Mach-based (family D) adapters: on POSIX
// hosts there is no OS-level mandatory lock analogous to family L's
// sharing-violation semantics, so a plain open suffices regardless of
// opts.AllowLockedFiles.
type unixFileAccess struct{}

func (unixFileAccess) OpenForRead(ctx context.Context, path string, _ OpenOptions) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeCancelled, err, "context cancelled before open")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, classifyOpenError(err, path)
	}
	return file, nil
}

func (unixFileAccess) Stat(_ context.Context, path string, _ OpenOptions) (FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return FileInfo{}, classifyOpenError(err, path)
	}
	return statToFileInfo(path, info), nil
}

func (unixFileAccess) EnumerateDir(_ context.Context, path string, _ OpenOptions) ([]DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, classifyOpenError(err, path)
	}

	results := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		childPath := filepath.Join(path, entry.Name())
		info, err := os.Lstat(childPath)
		if err != nil {
			// A single unreadable child (e.g. removed mid-walk, or a
			// permission-denied special file) should not abort
			// enumeration of its siblings.
			continue
		}
		results = append(results, DirEntry{Path: childPath, Info: statToFileInfo(childPath, info)})
	}
	return results, nil
}

func statToFileInfo(path string, info os.FileInfo) FileInfo {
	result := FileInfo{
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}

	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		result.AccessTime, result.ChangeTime = statTimestamps(sys)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if target, err := os.Readlink(path); err == nil {
			result.LinkTarget = target
		}
	}

	return result
}

func classifyOpenError(err error, path string) error {
	switch {
	case os.IsNotExist(err):
		return triageerrors.Wrap(triageerrors.CodeNotFound, err, "not found: "+path)
	case os.IsPermission(err):
		return triageerrors.Wrap(triageerrors.CodePermissionDenied, err, "permission denied: "+path)
	default:
		return triageerrors.Wrap(triageerrors.CodeIoError, err, "unable to access: "+path)
	}
}
