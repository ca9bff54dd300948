package platform

import (
	"syscall"
	"time"
)

func statTimestamps(sys *syscall.Stat_t) (accessTime, changeTime time.Time) {
	accessTime = time.Unix(sys.Atim.Sec, sys.Atim.Nsec)
	changeTime = time.Unix(sys.Ctim.Sec, sys.Ctim.Nsec)
	return
}
