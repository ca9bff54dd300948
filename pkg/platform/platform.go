// Package platform implements the uniform raw-access abstraction (C2) used
// by every other component to open files, enumerate directories, and read
// live process memory. Three concrete implementations exist, selected at
// compile time by build tag: platform_windows.go (family L, locked-file
// hosts using backup semantics), platform_linux.go (family P, proc-based
// hosts), and platform_darwin.go (family D, Mach-based hosts). Callers
// should depend only on the Adapter interface defined here.
package platform

import (
	"context"
	"io"
	"time"
)

// OpenOptions controls how OpenForRead and EnumerateDir access the
// underlying host. AllowLockedFiles enables the backup-semantics / raw
// fallback path on families that support it; on families without a locked
// file concept it is ignored.
type OpenOptions struct {
	AllowLockedFiles bool
}

// FileInfo is the uniform stat result returned by every family's adapter.
type FileInfo struct {
	Size       int64
	AccessTime time.Time
	ModTime    time.Time
	ChangeTime time.Time
	// CreateTime is only populated by family L's Stat, which reads the
	// file's creation time; families D and P, and family L's other calls,
	// leave it zero with HasCreateTime false.
	CreateTime time.Time
	HasCreateTime bool
	IsDir      bool
	LinkTarget string
}

// DirEntry is one result from EnumerateDir.
type DirEntry struct {
	Path string
	Info FileInfo
}

// ProcessHandle is an opaque, family-specific handle to a running process
// opened via Adapter.OpenProcess. It must be closed by the caller once the
// process's memory acquisition is complete.
type ProcessHandle interface {
	io.Closer
	PID() int
}

// RegionType classifies the backing of a memory region.
type RegionType string

const (
	RegionStack      RegionType = "Stack"
	RegionHeap       RegionType = "Heap"
	RegionCode       RegionType = "Code"
	RegionMappedFile RegionType = "MappedFile"
	RegionOther      RegionType = "Other"
)

// Protection holds the read/write/execute bits of a memory region.
type Protection struct {
	Read    bool
	Write   bool
	Execute bool
}

// MemoryRegion describes one contiguous virtual-address range in a target
// process sharing a single protection and backing.
type MemoryRegion struct {
	BaseAddress uint64
	Size        uint64
	Type        RegionType
	Protection  Protection
	// BackingPath is the path of the file backing this region, if any.
	BackingPath string
}

// Adapter is the capability set every host family implements. All methods
// must be safe to call concurrently from multiple runners (§5): the adapter
// holds no mutable state beyond what is synchronized internally (the
// privilege-token set). Process handles are not cached on any family.
type Adapter interface {
	// OpenForRead opens path for reading, bypassing OS locks when the
	// family supports it and opts.AllowLockedFiles is set.
	OpenForRead(ctx context.Context, path string, opts OpenOptions) (io.ReadCloser, error)

	// Stat returns metadata for path without opening it for streaming
	// reads.
	Stat(ctx context.Context, path string, opts OpenOptions) (FileInfo, error)

	// EnumerateDir lists the direct children of path. It does not
	// recurse; callers (the planner, the bodyfile walker) compose
	// recursion themselves so that depth limits and exclusion patterns
	// can be applied between levels.
	EnumerateDir(ctx context.Context, path string, opts OpenOptions) ([]DirEntry, error)

	// OpenProcess opens the target process for memory acquisition.
	OpenProcess(ctx context.Context, pid int) (ProcessHandle, error)

	// EnumerateRegions lists the memory regions of a process opened via
	// OpenProcess, ordered by ascending base address (§5 ordering
	// guarantee for region reads).
	EnumerateRegions(ctx context.Context, handle ProcessHandle) ([]MemoryRegion, error)

	// ReadMemory reads up to len(buffer) bytes from the target process at
	// address, returning the number of bytes actually read. A short read
	// (n < len(buffer)) without an error indicates a partially readable
	// region; it is not itself an error condition.
	ReadMemory(ctx context.Context, handle ProcessHandle, address uint64, buffer []byte) (int, error)
}

// Family identifies which concrete Adapter implementation New returns on the
// current build target.
type Family int

const (
	FamilyP Family = iota
	FamilyL
	FamilyD
)
