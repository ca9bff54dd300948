//go:build windows

package bodyfile

import (
	"os"
	"syscall"
	"time"
)

// statRecord on the locked-file family has no POSIX inode/uid/gid concept;
// those columns are recorded as zero, matching common Sleuthkit bodyfile
// practice for NTFS volumes collected without MFT-level parsing.
func statRecord(fullPath, relativePath string) (Record, error) {
	info, err := os.Stat(fullPath)
	if err != nil {
		return Record{}, err
	}

	record := Record{
		RelativePath: relativePath,
		Mode:         uint32(info.Mode().Perm()),
		Size:         info.Size(),
		ModTime:      info.ModTime(),
	}

	if sys, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
		record.AccessTime = time.Unix(0, sys.LastAccessTime.Nanoseconds())
		record.ChangeTime = time.Unix(0, sys.LastWriteTime.Nanoseconds())
		record.CreateTime = time.Unix(0, sys.CreationTime.Nanoseconds())
		record.HasCreateTime = true
	}

	return record, nil
}
