//go:build linux

package bodyfile

import (
	"syscall"
	"time"
)

func statTimestamps(sys *syscall.Stat_t) (accessTime, changeTime time.Time) {
	return time.Unix(sys.Atim.Sec, sys.Atim.Nsec), time.Unix(sys.Ctim.Sec, sys.Ctim.Nsec)
}
