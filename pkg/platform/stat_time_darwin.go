package platform

import (
	"syscall"
	"time"
)

func statTimestamps(sys *syscall.Stat_t) (accessTime, changeTime time.Time) {
	accessTime = time.Unix(sys.Atimespec.Sec, sys.Atimespec.Nsec)
	changeTime = time.Unix(sys.Ctimespec.Sec, sys.Ctimespec.Nsec)
	return
}
