package memory

import "io"

// FileSink is the minimal output contract the memory subsystem needs from
// its destination: a way to open a new, append-only file at a
// collection-relative path. The archive pipeline (C9) and the staging
// filesystem both satisfy this contract, so the subsystem is not coupled to
// either.
type FileSink interface {
	Create(relativePath string) (io.WriteCloser, error)
}
