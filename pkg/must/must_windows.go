//go:build windows

package must

import (
	"github.com/triagekit/engine/pkg/logging"
	"golang.org/x/sys/windows"
)

// CloseWindowsHandle closes a raw Windows handle obtained via CreateFile with
// backup semantics, logging a warning on failure.
func CloseWindowsHandle(wh windows.Handle, logger *logging.Logger) {
	if err := windows.CloseHandle(wh); err != nil {
		logger.Warnf("unable to close handle %d: %s", wh, err.Error())
	}
}
