// Package bodyfile implements the Bodyfile Generator (C8): a parallel walk
// of the staging tree producing one Sleuthkit-compatible timeline line per
// file.
package bodyfile

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/triagekit/engine/pkg/hashing"
)

// Options configures bodyfile generation, mirroring the manifest's
// bodyfile_* global options (§6).
type Options struct {
	CalculateHash    bool
	HashMaxSizeBytes uint64
	SkipPaths        []string
	UseISO8601       bool
}

// Record is one file's worth of the eleven bodyfile fields, prior to line
// formatting.
type Record struct {
	RelativePath  string
	Inode         uint64
	Mode          uint32
	UID           uint32
	GID           uint32
	Size          int64
	AccessTime    time.Time
	ModTime       time.Time
	ChangeTime    time.Time
	CreateTime    time.Time
	HasCreateTime bool
}

// Line renders r as the eleven-field pipe-separated Sleuthkit bodyfile
// line, per §6: hash|name|inode|mode|uid|gid|size|atime|mtime|ctime|crtime.
func Line(r Record, hash string, opts Options) string {
	fields := []string{
		hash,
		r.RelativePath,
		strconv.FormatUint(r.Inode, 10),
		strconv.FormatUint(uint64(r.Mode), 8),
		strconv.FormatUint(uint64(r.UID), 10),
		strconv.FormatUint(uint64(r.GID), 10),
		strconv.FormatInt(r.Size, 10),
		formatTimestamp(r.AccessTime, opts.UseISO8601),
		formatTimestamp(r.ModTime, opts.UseISO8601),
		formatTimestamp(r.ChangeTime, opts.UseISO8601),
		formatTimestamp(r.CreateTime, opts.UseISO8601),
	}
	return strings.Join(fields, "|")
}

func formatTimestamp(t time.Time, iso8601 bool) string {
	if t.IsZero() {
		if iso8601 {
			return ""
		}
		return "0"
	}
	if iso8601 {
		return t.UTC().Format(time.RFC3339)
	}
	return strconv.FormatInt(t.Unix(), 10)
}

// HashFor computes the bodyfile hash column for a file of the given
// relative path and size under opts: the digest if CalculateHash is enabled
// and the size/skip-path policy accepts the file, hashing.SkippedDigest
// otherwise. open is only invoked when hashing is actually required.
func HashFor(opts Options, relativePath string, size int64, open func() (io.ReadCloser, error)) (string, error) {
	if !opts.CalculateHash || IsSkipped(opts, relativePath) {
		return hashing.SkippedDigest, nil
	}

	policy := hashing.Policy{MaxSizeBytes: opts.HashMaxSizeBytes}
	if !policy.Accepts(relativePath, uint64(size)) {
		return hashing.SkippedDigest, nil
	}

	file, err := open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	return hashing.HashReader(file)
}

// IsSkipped reports whether relativePath falls under one of opts.SkipPaths
// and should be omitted from the bodyfile entirely (§4.8).
func IsSkipped(opts Options, relativePath string) bool {
	for _, prefix := range opts.SkipPaths {
		if prefix != "" && strings.HasPrefix(relativePath, prefix) {
			return true
		}
	}
	return false
}
