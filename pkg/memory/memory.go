// Package memory implements the Memory Subsystem (C5): process memory
// acquisition, pattern search, and rule-based scanning. It consumes the
// platform Adapter's OpenProcess/EnumerateRegions/ReadMemory capabilities.
// The collector runs it after the volatile snapshot (§5's happens-before
// ordering guarantee between C4 and C5); this package does not check a pid
// against that snapshot, and explicitly named pids are acquired whether or
// not the snapshot lists them.
package memory

import (
	"github.com/triagekit/engine/pkg/platform"
)

// chunkSize bounds every ReadMemory call at 4 MiB, per §4.5.
const chunkSize = 4 * 1024 * 1024

// RegionFilter selects which memory regions of a process are acquired or
// scanned. A zero-value RegionFilter accepts every region.
type RegionFilter struct {
	MinSize    uint64
	MaxSize    uint64
	TypeMask   map[platform.RegionType]bool
	Readable   bool
	Writable   bool
	Executable bool
}

// Accepts reports whether region passes the filter.
func (f RegionFilter) Accepts(region platform.MemoryRegion) bool {
	if f.MinSize > 0 && region.Size < f.MinSize {
		return false
	}
	if f.MaxSize > 0 && region.Size > f.MaxSize {
		return false
	}
	if len(f.TypeMask) > 0 && !f.TypeMask[region.Type] {
		return false
	}
	if f.Readable && !region.Protection.Read {
		return false
	}
	if f.Writable && !region.Protection.Write {
		return false
	}
	if f.Executable && !region.Protection.Execute {
		return false
	}
	return true
}

// RegionOutcome records what happened to a single region during a
// collection pass, independent of which of the three operations ran.
type RegionOutcome struct {
	Region  platform.MemoryRegion
	Skipped bool
	Error   string
	BytesRead uint64
	Partial bool
}

// ProcessOutcome aggregates the per-region outcomes for one process.
type ProcessOutcome struct {
	PID     int
	Error   string
	Regions []RegionOutcome
}
