//go:build !windows

package bodyfile

import (
	"os"
	"syscall"
)

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

	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		record.Inode = uint64(sys.Ino)
		record.UID = sys.Uid
		record.GID = sys.Gid
		access, change := statTimestamps(sys)
		record.AccessTime = access
		record.ChangeTime = change
	}

	return record, nil
}
