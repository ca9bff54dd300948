// Package sink defines the AsyncByteSink contract shared by every output
// destination (C10 object store, C11 SFTP, and a plain local file), so the
// collector can drive archive output uniformly regardless of which
// destination a run's sink coordinate selects.
package sink

import (
	"context"
	"io"
	"os"

	"github.com/triagekit/engine/pkg/triageerrors"
)

// AsyncByteSink is the destination contract both pkg/sink/objectstore and
// pkg/sink/sftp implement: a caller writes data with WriteAll, optionally
// drains any internal buffer with Flush, and finalizes the destination with
// exactly one of Complete (success) or Abort (failure cleanup).
type AsyncByteSink interface {
	WriteAll(ctx context.Context, data []byte) error
	Flush(ctx context.Context) error
	Complete(ctx context.Context) error
	Abort(ctx context.Context) error
}

// LocalFile is the local-filesystem AsyncByteSink: the trivial case of the
// same contract, used when a sink coordinate names a plain path rather than
// an object store or SFTP destination.
type LocalFile struct {
	file *os.File
	path string
}

// CreateLocalFile opens path for writing, truncating any existing file, and
// wraps it as an AsyncByteSink.
func CreateLocalFile(path string) (*LocalFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeIoError, err, "creating local archive destination")
	}
	return &LocalFile{file: file, path: path}, nil
}

// WriteAll writes data to the file.
func (l *LocalFile) WriteAll(ctx context.Context, data []byte) error {
	if _, err := l.file.Write(data); err != nil {
		return triageerrors.Wrap(triageerrors.CodeIoError, err, "writing local archive destination")
	}
	return nil
}

// Flush is a no-op: every WriteAll call writes synchronously.
func (l *LocalFile) Flush(ctx context.Context) error {
	return nil
}

// Complete closes the file.
func (l *LocalFile) Complete(ctx context.Context) error {
	if err := l.file.Close(); err != nil {
		return triageerrors.Wrap(triageerrors.CodeIoError, err, "closing local archive destination")
	}
	return nil
}

// Abort closes and removes the partially written file. It is idempotent.
func (l *LocalFile) Abort(ctx context.Context) error {
	l.file.Close()
	os.Remove(l.path)
	return nil
}

// AsyncWriter adapts an AsyncByteSink to io.Writer, so the archive pipeline
// (which only knows how to write to an io.Writer) can target any of the
// three sink kinds uniformly.
type AsyncWriter struct {
	ctx  context.Context
	sink AsyncByteSink
}

// NewAsyncWriter wraps sink as an io.Writer bound to ctx.
func NewAsyncWriter(ctx context.Context, sink AsyncByteSink) *AsyncWriter {
	return &AsyncWriter{ctx: ctx, sink: sink}
}

// Write implements io.Writer by forwarding to the sink's WriteAll.
func (w *AsyncWriter) Write(data []byte) (int, error) {
	if err := w.sink.WriteAll(w.ctx, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

var _ io.Writer = (*AsyncWriter)(nil)
