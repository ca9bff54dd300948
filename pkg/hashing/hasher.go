// Package hashing implements the Hasher (C7): a streaming SHA-256 content
// hash, size-bounded and skip-path aware, consumed by the Bodyfile
// Generator and the Collection Summary. It is built directly on
// pkg/stream's composable writer primitives rather than reimplementing
// buffering or cutoff logic.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"github.com/triagekit/engine/pkg/stream"
)

// Result is the outcome of hashing one file.
type Result struct {
	// Hash is the lowercase hex SHA-256 digest, or empty if Skipped.
	Hash string
	// Skipped is true when the file exceeded MaxSizeBytes and was not
	// hashed at all.
	Skipped bool
}

// SkippedDigest is the bodyfile hash-column value used for an unhashed file
// (§4.8: "Hash column uses SHA-256 when enabled, else 0").
const SkippedDigest = "0"

// Policy bounds which files get hashed.
type Policy struct {
	// MaxSizeBytes caps the size of file that will be hashed; 0 means
	// unlimited. Files at exactly the limit are hashed; anything larger is
	// recorded as skipped-too-large.
	MaxSizeBytes uint64
	// SkipPathPrefixes excludes whole subtrees from hashing by relative
	// path prefix.
	SkipPathPrefixes []string
}

// Accepts reports whether relativePath with the given size should be
// hashed under p.
func (p Policy) Accepts(relativePath string, size uint64) bool {
	for _, prefix := range p.SkipPathPrefixes {
		if prefix != "" && strings.HasPrefix(relativePath, prefix) {
			return false
		}
	}
	if p.MaxSizeBytes > 0 && size > p.MaxSizeBytes {
		return false
	}
	return true
}

// HashReader streams src through SHA-256, returning the lowercase hex
// digest of everything read. It does not enforce Policy itself — callers
// check Policy.Accepts before calling HashReader so that an oversized file
// is never read twice.
func HashReader(src io.Reader) (string, error) {
	hasher := sha256.New()
	hashedReader := io.TeeReader(src, hasher)
	if _, err := io.Copy(io.Discard, hashedReader); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// NewHashingWriter returns a writer that forwards every byte to dst while
// accumulating a SHA-256 digest, available via Sum once writing is
// complete.
func NewHashingWriter(dst io.Writer) (io.Writer, func() string) {
	hasher := sha256.New()
	return stream.NewHashedWriter(dst, hasher), func() string {
		return hex.EncodeToString(hasher.Sum(nil))
	}
}

// CopyAndHash copies src into dst, capping the bytes actually delivered to
// dst at maxBytes (0 means unlimited) via stream.NewCutoffWriter while still
// hashing every byte read from src via stream.NewHashedWriter — so a file
// that exceeds a destination size cap still yields a correct digest over
// its full content, matching the independent size/hash bounds in §6's
// global options.
func CopyAndHash(dst io.Writer, src io.Reader, maxBytes uint64) (written int64, digest string, err error) {
	hasher := sha256.New()
	limited := dst
	if maxBytes > 0 {
		limited = stream.NewCutoffWriter(dst, uint(maxBytes))
	}
	hashed := stream.NewHashedWriter(limited, hasher)

	written, err = io.Copy(hashed, src)
	if err != nil {
		return written, "", err
	}
	return written, hex.EncodeToString(hasher.Sum(nil)), nil
}
