package platform

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	osvendor "github.com/triagekit/engine/pkg/filesystem/third_party/os"
	"github.com/triagekit/engine/pkg/triageerrors"
)

// backupPrivileges lists the privilege names acquired by the one-shot
// startup routine (§9). Rather than failing the engine if some cannot be
// enabled, grantedPrivileges below records a bitmask of whichever were
// obtained, and OpenForRead consults it before attempting a backup-semantics
// open.
var backupPrivileges = []string{
	"SeBackupPrivilege",
	"SeRestorePrivilege",
	"SeSecurityPrivilege",
	"SeTakeOwnershipPrivilege",
	"SeDebugPrivilege",
}

type privilegeBit uint

const (
	privilegeBackup privilegeBit = 1 << iota
	privilegeRestore
	privilegeSecurity
	privilegeTakeOwnership
	privilegeDebug
)

var (
	privilegeInit     sync.Once
	grantedPrivileges privilegeBit
)

// acquirePrivileges adjusts the process token to enable the privileges
// needed for backup-semantics access, recording which ones succeeded. It
// runs at most once per process, per §5's "global state acquired once at
// init, never mutated thereafter" policy.
func acquirePrivileges() {
	privilegeInit.Do(func() {
		var token windows.Token
		process, err := windows.GetCurrentProcess()
		if err != nil {
			return
		}
		if err := windows.OpenProcessToken(process, windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token); err != nil {
			return
		}
		defer token.Close()

		bits := []privilegeBit{privilegeBackup, privilegeRestore, privilegeSecurity, privilegeTakeOwnership, privilegeDebug}
		for i, name := range backupPrivileges {
			if enableTokenPrivilege(token, name) {
				grantedPrivileges |= bits[i]
			}
		}
	})
}

func enableTokenPrivilege(token windows.Token, name string) bool {
	var luid windows.LUID
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return false
	}
	if err := windows.LookupPrivilegeValue(nil, namePtr, &luid); err != nil {
		return false
	}

	privileges := windows.Tokenprivileges{
		PrivilegeCount: 1,
		Privileges: [1]windows.LUIDAndAttributes{
			{Luid: luid, Attributes: windows.SE_PRIVILEGE_ENABLED},
		},
	}

	return windows.AdjustTokenPrivileges(token, false, &privileges, 0, nil, nil) == nil
}

// GrantedPrivilegesDescription renders the acquired-privilege bitmask for
// inclusion in the volatile system-facts record.
func GrantedPrivilegesDescription() []string {
	var granted []string
	for i, name := range backupPrivileges {
		if grantedPrivileges&(1<<uint(i)) != 0 {
			granted = append(granted, name)
		}
	}
	return granted
}

// lockedFileAdapter is the family L implementation of Adapter.
type lockedFileAdapter struct{}

// New constructs the family L adapter, performing the one-shot privilege
// acquisition described in §9.
func New() (Adapter, error) {
	acquirePrivileges()
	return &lockedFileAdapter{}, nil
}

func toUTF16Path(path string) (*uint16, error) {
	fixed := osvendor.FixLongPath(path)
	return windows.UTF16PtrFromString(fixed)
}

func (a *lockedFileAdapter) OpenForRead(ctx context.Context, path string, opts OpenOptions) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeCancelled, err, "context cancelled before open")
	}

	if !opts.AllowLockedFiles || grantedPrivileges&privilegeBackup == 0 {
		file, err := os.Open(path)
		if err != nil {
			return nil, classifyWindowsOpenError(err, path)
		}
		return file, nil
	}

	path16, err := toUTF16Path(path)
	if err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeInvalidPath, err, "unable to convert path to UTF-16")
	}

	handle, err := windows.CreateFile(
		path16,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT,
		0,
	)
	if err != nil {
		return nil, classifyWindowsOpenError(err, path)
	}

	return os.NewFile(uintptr(handle), path), nil
}

func (a *lockedFileAdapter) Stat(ctx context.Context, path string, opts OpenOptions) (FileInfo, error) {
	if !opts.AllowLockedFiles || grantedPrivileges&privilegeBackup == 0 {
		info, err := os.Lstat(path)
		if err != nil {
			return FileInfo{}, classifyWindowsOpenError(err, path)
		}
		return windowsStatToFileInfo(path, info), nil
	}

	path16, err := toUTF16Path(path)
	if err != nil {
		return FileInfo{}, triageerrors.Wrap(triageerrors.CodeInvalidPath, err, "unable to convert path to UTF-16")
	}

	handle, err := windows.CreateFile(
		path16,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT,
		0,
	)
	if err != nil {
		return FileInfo{}, classifyWindowsOpenError(err, path)
	}
	defer windows.CloseHandle(handle)

	var raw windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(handle, &raw); err != nil {
		return FileInfo{}, triageerrors.Wrap(triageerrors.CodeIoError, err, "unable to query handle information")
	}

	size := int64(raw.FileSizeHigh)<<32 | int64(raw.FileSizeLow)
	return FileInfo{
		Size:          size,
		AccessTime:    filetimeToTime(raw.LastAccessTime),
		ModTime:       filetimeToTime(raw.LastWriteTime),
		CreateTime:    filetimeToTime(raw.CreationTime),
		HasCreateTime: true,
		IsDir:         raw.FileAttributes&windows.FILE_ATTRIBUTE_DIRECTORY != 0,
	}, nil
}

func (a *lockedFileAdapter) EnumerateDir(ctx context.Context, path string, opts OpenOptions) ([]DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, classifyWindowsOpenError(err, path)
	}

	results := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		childPath := filepath.Join(path, entry.Name())
		info, err := a.Stat(ctx, childPath, opts)
		if err != nil {
			continue
		}
		results = append(results, DirEntry{Path: childPath, Info: info})
	}
	return results, nil
}

func windowsStatToFileInfo(path string, info os.FileInfo) FileInfo {
	result := FileInfo{
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if target, err := os.Readlink(path); err == nil {
			result.LinkTarget = target
		}
	}
	return result
}

func filetimeToTime(ft windows.Filetime) time.Time {
	return time.Unix(0, ft.Nanoseconds())
}

func classifyWindowsOpenError(err error, path string) error {
	switch {
	case os.IsNotExist(err):
		return triageerrors.Wrap(triageerrors.CodeNotFound, err, "not found: "+path)
	case os.IsPermission(err):
		return triageerrors.Wrap(triageerrors.CodePermissionDenied, err, "permission denied: "+path)
	case err == windows.ERROR_SHARING_VIOLATION:
		return triageerrors.Wrap(triageerrors.CodeLocked, err, "locked: "+path)
	default:
		return triageerrors.Wrap(triageerrors.CodeIoError, err, "unable to access: "+path)
	}
}

// --- Process memory (family L) ---

type windowsProcessHandle struct {
	pid    int
	handle windows.Handle
}

func (h *windowsProcessHandle) PID() int { return h.pid }

func (h *windowsProcessHandle) Close() error {
	return windows.CloseHandle(h.handle)
}

func (a *lockedFileAdapter) OpenProcess(ctx context.Context, pid int) (ProcessHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeCancelled, err, "context cancelled before process open")
	}

	access := uint32(windows.PROCESS_VM_READ | windows.PROCESS_QUERY_INFORMATION)
	handle, err := windows.OpenProcess(access, false, uint32(pid))
	if err != nil {
		if err == windows.ERROR_INVALID_PARAMETER {
			return nil, triageerrors.Wrap(triageerrors.CodeProcessGone, err, "process no longer exists")
		}
		return nil, triageerrors.Wrap(triageerrors.CodePermissionDenied, err, "unable to open process")
	}

	return &windowsProcessHandle{pid: pid, handle: handle}, nil
}

func (a *lockedFileAdapter) EnumerateRegions(ctx context.Context, handle ProcessHandle) ([]MemoryRegion, error) {
	h, ok := handle.(*windowsProcessHandle)
	if !ok {
		return nil, triageerrors.New(triageerrors.CodeIoError, "handle is not a family L process handle")
	}

	var regions []MemoryRegion
	var address uintptr
	for {
		if err := ctx.Err(); err != nil {
			return nil, triageerrors.Wrap(triageerrors.CodeCancelled, err, "context cancelled during region enumeration")
		}

		var info windows.MemoryBasicInformation
		err := windows.VirtualQueryEx(h.handle, address, &info, unsafe.Sizeof(info))
		if err != nil {
			break
		}
		if info.RegionSize == 0 {
			break
		}

		if info.State == windows.MEM_COMMIT {
			protection := decodeWindowsProtection(info.Protect)
			regions = append(regions, MemoryRegion{
				BaseAddress: uint64(info.BaseAddress),
				Size:        uint64(info.RegionSize),
				Type:        classifyWindowsRegion(info.Type, protection),
				Protection:  protection,
			})
		}

		next := address + uintptr(info.RegionSize)
		if next <= address {
			break
		}
		address = next
	}

	return regions, nil
}

func decodeWindowsProtection(protect uint32) Protection {
	const (
		pageExecute          = 0x10
		pageExecuteRead      = 0x20
		pageExecuteReadWrite = 0x40
		pageExecuteWriteCopy = 0x80
		pageReadOnly         = 0x02
		pageReadWrite        = 0x04
		pageWriteCopy        = 0x08
	)
	switch protect &^ 0x100 { // clear PAGE_GUARD
	case pageExecute:
		return Protection{Execute: true}
	case pageExecuteRead:
		return Protection{Read: true, Execute: true}
	case pageExecuteReadWrite, pageExecuteWriteCopy:
		return Protection{Read: true, Write: true, Execute: true}
	case pageReadOnly:
		return Protection{Read: true}
	case pageReadWrite, pageWriteCopy:
		return Protection{Read: true, Write: true}
	default:
		return Protection{}
	}
}

func classifyWindowsRegion(memType uint32, protection Protection) RegionType {
	const (
		memImage   = 0x1000000
		memMapped  = 0x40000
		memPrivate = 0x20000
	)
	switch memType {
	case memImage:
		return RegionCode
	case memMapped:
		return RegionMappedFile
	case memPrivate:
		if protection.Execute {
			return RegionCode
		}
		return RegionHeap
	default:
		return RegionOther
	}
}

func (a *lockedFileAdapter) ReadMemory(ctx context.Context, handle ProcessHandle, address uint64, buffer []byte) (int, error) {
	h, ok := handle.(*windowsProcessHandle)
	if !ok {
		return 0, triageerrors.New(triageerrors.CodeIoError, "handle is not a family L process handle")
	}
	if err := ctx.Err(); err != nil {
		return 0, triageerrors.Wrap(triageerrors.CodeCancelled, err, "context cancelled before memory read")
	}
	if len(buffer) == 0 {
		return 0, nil
	}

	var read uintptr
	err := windows.ReadProcessMemory(h.handle, uintptr(address), &buffer[0], uintptr(len(buffer)), &read)
	if err != nil {
		if read > 0 {
			return int(read), nil
		}
		return 0, triageerrors.Wrap(triageerrors.CodeRegionUnreadable, err, fmt.Sprintf("unable to read process memory at 0x%x", address))
	}

	return int(read), nil
}
