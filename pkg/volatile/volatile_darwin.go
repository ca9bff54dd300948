package volatile

import (
	"time"

	"golang.org/x/sys/unix"
)

func gatherSystemFacts() (SystemFacts, error) {
	facts := baseSystemFacts()

	if release, err := unix.Sysctl("kern.osrelease"); err == nil {
		facts.KernelVersion = release
	}

	if bootTimeUnix, err := unix.SysctlUint32("kern.boottime"); err == nil && bootTimeUnix > 0 {
		facts.BootTime = time.Unix(int64(bootTimeUnix), 0).UTC()
	}

	return facts, nil
}

// gatherProcesses on family D is intentionally conservative: a full process
// listing requires decoding the kern.proc.all sysctl's raw kinfo_proc array,
// which is out of scope for this adapter without pulling in a
// process-listing dependency the retrieval pack does not otherwise exercise.
// The list is always empty on this family and nothing else fills in
// per-process records, so a collection that names no target pids acquires
// no process memory here.
func gatherProcesses() ([]ProcessRecord, error) {
	return nil, nil
}

func gatherNetwork() ([]NetworkConnectionRecord, error) {
	return nil, nil
}

func gatherMemoryStats() (MemoryStatsRecord, error) {
	totalBytes, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return MemoryStatsRecord{}, err
	}

	pageSize, err := unix.SysctlUint32("hw.pagesize")
	if err != nil {
		pageSize = 4096
	}

	freePages, err := unix.SysctlUint32("vm.page_free_count")
	freeBytes := uint64(freePages) * uint64(pageSize)
	if err != nil {
		freeBytes = 0
	}

	return MemoryStatsRecord{
		TotalBytes:     totalBytes,
		AvailableBytes: freeBytes,
		UsedBytes:      totalBytes - freeBytes,
	}, nil
}

func gatherDisks() ([]DiskRecord, error) {
	count, err := unix.Getfsstat(nil, unix.MNT_NOWAIT)
	if err != nil || count <= 0 {
		return nil, err
	}

	mounts := make([]unix.Statfs_t, count)
	if _, err := unix.Getfsstat(mounts, unix.MNT_NOWAIT); err != nil {
		return nil, err
	}

	records := make([]DiskRecord, 0, len(mounts))
	for _, stat := range mounts {
		records = append(records, DiskRecord{
			Device:         cString(int8SliceToBytes(stat.Mntfromname[:])),
			MountPoint:     cString(int8SliceToBytes(stat.Mntonname[:])),
			FilesystemType: cString(int8SliceToBytes(stat.Fstypename[:])),
			TotalBytes:     stat.Blocks * uint64(stat.Bsize),
			FreeBytes:      stat.Bfree * uint64(stat.Bsize),
		})
	}

	return records, nil
}

func int8SliceToBytes(in []int8) []byte {
	out := make([]byte, len(in))
	for i, c := range in {
		out[i] = byte(c)
	}
	return out
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
