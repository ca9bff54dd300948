package logging

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"sync/atomic"

	"github.com/fatih/color"

	"github.com/triagekit/engine/pkg/engineinfo"
)

// Sanitizer scrubs sensitive substrings (credentials, access keys, private
// key material, session tokens) out of a formatted line before it reaches
// its destination. The installed sanitizer is shared by a Logger and every
// sublogger derived from it. The zero value installed by NewLogger is a
// no-op; a driver wires in a real scrubber via SetSanitizer.
type Sanitizer interface {
	Sanitize(line string) string
}

type noopSanitizer struct{}

func (noopSanitizer) Sanitize(line string) string { return line }

// writer is an io.Writer that splits its input stream into lines and writes
// those lines to an underlying logger.
type writer struct {
	// callback is the logging callback.
	callback func(string)
	// buffer is any incomplete line fragment left over from a previous write.
	buffer []byte
}

// trimCarriageReturn trims any single trailing carriage return from the end of
// a byte slice.
func trimCarriageReturn(buffer []byte) []byte {
	if len(buffer) > 0 && buffer[len(buffer)-1] == '\r' {
		return buffer[:len(buffer)-1]
	}
	return buffer
}

// Write implements io.Writer.Write.
func (w *writer) Write(buffer []byte) (int, error) {
	// Append the data to our internal buffer.
	w.buffer = append(w.buffer, buffer...)

	// Process all lines in the buffer, tracking the number of bytes that we
	// process.
	var processed int
	remaining := w.buffer
	for {
		// Find the index of the next newline character.
		index := bytes.IndexByte(remaining, '\n')
		if index == -1 {
			break
		}

		// Process the line.
		w.callback(string(trimCarriageReturn(remaining[:index])))

		// Update the number of bytes that we've processed.
		processed += index + 1

		// Update the remaining slice.
		remaining = remaining[index+1:]
	}

	// If we managed to process bytes, then truncate our internal buffer.
	if processed > 0 {
		// Compute the number of leftover bytes.
		leftover := len(w.buffer) - processed

		// If there are leftover bytes, then shift them to the front of the
		// buffer.
		if leftover > 0 {
			copy(w.buffer[:leftover], w.buffer[processed:])
		}

		// Truncate the buffer.
		w.buffer = w.buffer[:leftover]
	}

	// Done.
	return len(buffer), nil
}

// shared holds the state common to a Logger and every sublogger derived
// from it: the severity threshold, the destination, and the installed
// sanitizer. Only prefix varies between a Logger and its subloggers.
type shared struct {
	level     Level
	dest      *log.Logger
	sanitizer atomic.Value
}

// Logger is the main logger type. It has the novel property that it still
// functions if nil, but it doesn't log anything. Messages at or below its
// configured Level are written to its destination; the rest are discarded.
// It is safe for concurrent usage.
type Logger struct {
	shared *shared
	prefix string
}

// NewLogger creates a new logger writing to w. A message is written only if
// its own level value is <= level, so messages less severe than the
// threshold are discarded (LevelError messages always pass a
// LevelError-or-higher threshold, and so on up the hierarchy).
func NewLogger(level Level, w io.Writer) *Logger {
	l := &Logger{shared: &shared{level: level, dest: log.New(w, "", log.LstdFlags)}}
	l.shared.sanitizer.Store(Sanitizer(noopSanitizer{}))
	return l
}

// RootLogger is the root logger from which all other loggers derive.
var RootLogger = NewLogger(LevelInfo, os.Stdout)

// CurrentLevel reports RootLogger's configured severity threshold.
func CurrentLevel() Level {
	return RootLogger.Level()
}

// SetSanitizer installs s as the sanitizer for l and every Logger already
// derived from or later derived from the same root (they share state). A
// nil s reinstalls the no-op sanitizer.
func (l *Logger) SetSanitizer(s Sanitizer) {
	if l == nil {
		return
	}
	if s == nil {
		s = noopSanitizer{}
	}
	l.shared.sanitizer.Store(s)
}

// Level returns the logger's configured severity threshold. A nil logger
// reports LevelDisabled.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelDisabled
	}
	return l.shared.level
}

// Sublogger creates a new sublogger with the specified name, sharing this
// logger's level, destination, and sanitizer.
func (l *Logger) Sublogger(name string) *Logger {
	// If the logger is nil, then the sublogger will be as well.
	if l == nil {
		return nil
	}

	// Compute the new prefix.
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}

	return &Logger{shared: l.shared, prefix: prefix}
}

// output is the internal logging method. severity is the message's own
// level; it is only written if it falls at or under the logger's threshold.
func (l *Logger) output(severity Level, calldepth int, line string) {
	if l == nil || l.shared.level < severity {
		return
	}

	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}

	if sanitizer, ok := l.shared.sanitizer.Load().(Sanitizer); ok {
		line = sanitizer.Sanitize(line)
	}

	l.shared.dest.Output(calldepth, line)
}

// Print logs information with semantics equivalent to fmt.Print.
func (l *Logger) Print(v ...interface{}) {
	l.output(LevelInfo, 3, fmt.Sprint(v...))
}

// Printf logs information with semantics equivalent to fmt.Printf.
func (l *Logger) Printf(format string, v ...interface{}) {
	l.output(LevelInfo, 3, fmt.Sprintf(format, v...))
}

// Println logs information with semantics equivalent to fmt.Println.
func (l *Logger) Println(v ...interface{}) {
	l.output(LevelInfo, 3, fmt.Sprintln(v...))
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.output(LevelInfo, 3, fmt.Sprintf(format, v...))
}

// Writer returns an io.Writer that writes lines using Println.
func (l *Logger) Writer() io.Writer {
	if l == nil {
		return ioutil.Discard
	}
	return &writer{callback: func(s string) { l.Println(s) }}
}

// Debug logs information with semantics equivalent to fmt.Print, but only if
// debugging is enabled (otherwise it's a no-op).
func (l *Logger) Debug(v ...interface{}) {
	if l != nil && engineinfo.DebugEnabled {
		l.output(LevelDebug, 3, fmt.Sprint(v...))
	}
}

// Debugf logs information with semantics equivalent to fmt.Printf, but only if
// debugging is enabled (otherwise it's a no-op).
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l != nil && engineinfo.DebugEnabled {
		l.output(LevelDebug, 3, fmt.Sprintf(format, v...))
	}
}

// Debugln logs information with semantics equivalent to fmt.Println, but only
// if debugging is enabled (otherwise it's a no-op).
func (l *Logger) Debugln(v ...interface{}) {
	if l != nil && engineinfo.DebugEnabled {
		l.output(LevelDebug, 3, fmt.Sprintln(v...))
	}
}

// DebugWriter returns an io.Writer that writes lines using Debugln.
func (l *Logger) DebugWriter() io.Writer {
	if l == nil {
		return ioutil.Discard
	}
	return &writer{callback: func(s string) { l.Debugln(s) }}
}

// Warn logs error information with a warning prefix and yellow color.
func (l *Logger) Warn(err error) {
	l.output(LevelWarn, 3, color.YellowString("Warning: %v", err))
}

// Warnf logs a formatted warning message with a warning prefix and yellow
// color.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.output(LevelWarn, 3, color.YellowString("Warning: "+format, v...))
}

// Error logs error information with an error prefix and red color.
func (l *Logger) Error(err error) {
	l.output(LevelError, 3, color.RedString("Error: %v", err))
}

// Errorf logs a formatted error message with an error prefix and red color.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.output(LevelError, 3, color.RedString("Error: "+format, v...))
}
