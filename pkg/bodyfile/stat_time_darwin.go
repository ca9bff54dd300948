//go:build darwin

package bodyfile

import (
	"syscall"
	"time"
)

func statTimestamps(sys *syscall.Stat_t) (accessTime, changeTime time.Time) {
	return time.Unix(sys.Atimespec.Sec, sys.Atimespec.Nsec), time.Unix(sys.Ctimespec.Sec, sys.Ctimespec.Nsec)
}
