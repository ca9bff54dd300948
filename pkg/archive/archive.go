// Package archive implements the Archive Pipeline (C9): a streaming PKZip
// container with Zip64 support and adaptive per-entry compression, built
// directly on the standard library's archive/zip (which already streams
// local headers with a data descriptor and a zero-length placeholder when
// the writer has not been told the payload size in advance, and already
// emits Zip64 extra fields once an entry or the archive crosses the 4 GiB
// boundary).
package archive

import (
	"archive/zip"
	"compress/flate"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/triagekit/engine/pkg/stream"
)

// largeFileThresholdBytes is the size at or above which a compressible file still
// uses deflate, but at the fastest (least CPU-intensive) level, per §4.9.
const largeFileThresholdBytes = 100 * 1024 * 1024

// preCompressedExtensions lists destination-name extensions stored rather
// than deflated, per §4.9's authoritative list (§9: "the source lists some;
// treat the list in §4.9 as the authoritative spec").
var preCompressedExtensions = map[string]bool{
	".zip": true, ".7z": true, ".gz": true, ".bz2": true, ".xz": true,
	".zst": true, ".jpg": true, ".png": true, ".mp4": true, ".mkv": true,
	".mp3": true, ".flac": true, ".pdf": true,
}

// fastDeflateMethod and defaultDeflateMethod are the selector values
// selectMethod returns for deflate level 1 and the package default level.
// They never reach the container: since zip.Writer.RegisterCompressor is
// keyed by method id, not by level, CreateEntry registers a zip.Deflate
// compressor at the selected level just before opening the entry, and the
// entry is written with the standard deflate method.
const (
	fastDeflateMethod   uint16 = 0x1001
	defaultDeflateMethod uint16 = 0x1002
)

// Pipeline wraps a zip.Writer, serializing entry opens per §5 ("only one
// entry may be open at a time; the Executor's runners block on an
// entry-mutex when writing").
type Pipeline struct {
	mu      sync.Mutex
	writer  *zip.Writer
	auditor stream.Auditor
}

// New creates a Pipeline writing a PKZip stream to dst. auditor, if
// non-nil, is invoked with the byte count of every write made to any
// entry, so a single progress.Reporter can observe archive throughput
// alongside the rest of the engine; pass nil to opt out.
func New(dst io.Writer, auditor stream.Auditor) *Pipeline {
	return &Pipeline{writer: zip.NewWriter(dst), auditor: auditor}
}

// EntrySink is an append-only byte sink for one archive entry. Close
// finalizes the entry's CRC-32 and length (handled internally by
// archive/zip's data-descriptor emission) and releases the pipeline's
// entry-mutex for the next entry.
type EntrySink struct {
	io.Writer
	release func()
}

// Close finalizes the entry and allows the next CreateEntry call to
// proceed.
func (s *EntrySink) Close() error {
	defer s.release()
	return nil
}

// CreateEntry opens a new entry at relativePath with a modification time,
// selecting its compression method adaptively by extension and estimated
// size, per §4.9. It blocks until any previously open entry has been
// closed. estimatedSize may be 0 when unknown; the entry is still written
// in streaming mode (archive/zip always defers length/CRC to the data
// descriptor for a plain Writer.CreateHeader-opened entry).
func (p *Pipeline) CreateEntry(relativePath string, modTime time.Time, estimatedSize int64) (*EntrySink, error) {
	p.mu.Lock()

	method := selectMethod(relativePath, estimatedSize)
	if method != zip.Store {
		level := flate.DefaultCompression
		if method == fastDeflateMethod {
			level = flate.BestSpeed
		}
		p.writer.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
		method = zip.Deflate
	}

	header := &zip.FileHeader{
		Name:     filepath.ToSlash(relativePath),
		Modified: modTime,
		Method:   method,
	}

	writer, err := p.writer.CreateHeader(header)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	return &EntrySink{Writer: stream.NewAuditWriter(writer, p.auditor), release: p.mu.Unlock}, nil
}

// Create implements memory.FileSink and any other consumer needing a plain
// "open new file at this path" contract, opening the entry with an unknown
// estimated size and the current time as its modification timestamp.
func (p *Pipeline) Create(relativePath string) (io.WriteCloser, error) {
	return p.CreateEntry(relativePath, time.Now().UTC(), 0)
}

// Close finalizes the central directory and the end-of-central-directory
// record, sealing the container.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Close()
}

// selectMethod chooses store, fast deflate, or default deflate for an
// entry, per §4.9's adaptive-compression rule.
func selectMethod(relativePath string, estimatedSize int64) uint16 {
	ext := strings.ToLower(filepath.Ext(relativePath))
	if preCompressedExtensions[ext] {
		return zip.Store
	}
	if estimatedSize >= largeFileThresholdBytes {
		return fastDeflateMethod
	}
	return defaultDeflateMethod
}
