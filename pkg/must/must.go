// Package must provides helpers for invoking operations whose errors cannot
// be usefully propagated (typically cleanup paths in defer statements) while
// still surfacing failures through the logging system instead of silently
// discarding them.
package must

import (
	"fmt"
	"io"
	"os"

	"github.com/triagekit/engine/pkg/logging"
)

// Fprint writes to w, logging a warning if the write fails or is incomplete.
func Fprint(w io.Writer, logger *logging.Logger, a ...any) {
	s := fmt.Sprint(a...)
	n, err := fmt.Fprint(w, s)
	if err != nil {
		logger.Warnf("unable to write '%s': %s", s, err.Error())
	}
	if n < len(s) {
		logger.Warnf("unable to write all of '%s'; wrote only %d of %d bytes", s, n, len(s))
	}
}

// Close closes c, logging a warning on failure.
func Close(c io.Closer, logger *logging.Logger) {
	if err := c.Close(); err != nil {
		logger.Warnf("unable to close: %s", err.Error())
	}
}

// OSRemove removes the named file, logging a warning on failure.
func OSRemove(name string, logger *logging.Logger) {
	if err := os.Remove(name); err != nil {
		logger.Warnf("unable to remove '%s': %s", name, err.Error())
	}
}

// IOCopy copies from src to dst, logging a warning on failure.
func IOCopy(dst io.Writer, src io.Reader, logger *logging.Logger) {
	if _, err := io.Copy(dst, src); err != nil {
		logger.Warnf("unable to copy from source to destination: %s", err.Error())
	}
}

// Truncate truncates t to size, logging a warning on failure.
func Truncate(t interface{ Truncate(int64) error }, size int64, logger *logging.Logger) {
	if err := t.Truncate(size); err != nil {
		logger.Warnf("unable to truncate to size %d: %s", size, err.Error())
	}
}

// Succeed logs a warning if err is non-nil, annotating it with the task that
// failed.
func Succeed(err error, task string, logger *logging.Logger) {
	if err != nil {
		logger.Warnf("unable to succeed at %s: %s", task, err.Error())
	}
}

// Remove removes a named resource (e.g. a staged archive or partially
// uploaded object), logging a warning on failure.
func Remove(r interface{ Remove(string) error }, path string, logger *logging.Logger) {
	if err := r.Remove(path); err != nil {
		logger.Warnf("unable to remove '%s': %s", path, err.Error())
	}
}
