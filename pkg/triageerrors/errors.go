// Package triageerrors defines the sentinel error taxonomy shared across the
// collection engine. Errors are compared by sentinel value (via errors.Is)
// while still carrying a wrapped cause for logging and summary reporting.
package triageerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code identifies a class of error from the taxonomy. Codes are stable
// strings so they can be serialized directly into CollectionResult and
// CollectionSummary documents.
type Code string

// Planning error codes. These are fatal: no acquisition begins.
const (
	CodeUnknownVariable          Code = "UnknownVariable"
	CodeInvalidPath              Code = "InvalidPath"
	CodeRegexCompileError        Code = "RegexCompileError"
	CodeManifestVersionUnsupported Code = "ManifestVersionUnsupported"
)

// Per-task error codes. These are recorded on a CollectionResult and never
// propagated out of a task runner.
const (
	CodeNotFound         Code = "NotFound"
	CodePermissionDenied Code = "PermissionDenied"
	CodeLocked           Code = "Locked"
	CodeSizeLimitExceeded Code = "SizeLimitExceeded"
	CodeIoError          Code = "IoError"
	CodeCancelled        Code = "Cancelled"
)

// Sink error codes.
const (
	CodeConnectFailed     Code = "ConnectFailed"
	CodeAuthFailed        Code = "AuthFailed"
	CodeTransferFailed    Code = "TransferFailed"
	CodeRemoteAbortFailed Code = "RemoteAbortFailed"
)

// Memory-subsystem error codes.
const (
	CodeProcessGone      Code = "ProcessGone"
	CodeRegionUnreadable Code = "RegionUnreadable"
	CodeBackendUnavailable Code = "BackendUnavailable"
)

// Classified wraps a cause with a taxonomy code. It implements error and
// supports errors.Is/As against both *Classified values (by code) and the
// wrapped cause.
type Classified struct {
	Code  Code
	Cause error
}

// New creates a Classified error with no underlying cause.
func New(code Code, message string) *Classified {
	return &Classified{Code: code, Cause: errors.New(message)}
}

// Wrap classifies an existing error under the given code.
func Wrap(code Code, cause error, message string) *Classified {
	if cause == nil {
		return New(code, message)
	}
	return &Classified{Code: code, Cause: errors.Wrap(cause, message)}
}

// Error implements the error interface.
func (c *Classified) Error() string {
	if c.Cause == nil {
		return fmt.Sprintf("%s", c.Code)
	}
	return fmt.Sprintf("%s: %s", c.Code, c.Cause.Error())
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As/errors.Unwrap.
func (c *Classified) Unwrap() error {
	return c.Cause
}

// Is implements the sentinel-comparison contract used by errors.Is: two
// Classified errors are considered equal if their codes match, regardless of
// their wrapped causes.
func (c *Classified) Is(target error) bool {
	other, ok := target.(*Classified)
	if !ok {
		return false
	}
	return c.Code == other.Code
}

// Sentinel returns a bare Classified value usable as an errors.Is target for
// the given code (it carries no cause).
func Sentinel(code Code) *Classified {
	return &Classified{Code: code}
}

// CodeOf extracts the taxonomy code from err, returning ("", false) if err is
// not (or does not wrap) a *Classified error.
func CodeOf(err error) (Code, bool) {
	var classified *Classified
	if errors.As(err, &classified) {
		return classified.Code, true
	}
	return "", false
}

// IsFatalPlanning reports whether code belongs to the fatal planning-error
// class, which must abort the collection before any acquisition begins.
func IsFatalPlanning(code Code) bool {
	switch code {
	case CodeUnknownVariable, CodeInvalidPath, CodeRegexCompileError, CodeManifestVersionUnsupported:
		return true
	default:
		return false
	}
}
