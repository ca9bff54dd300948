package volatile

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/triagekit/engine/pkg/triageerrors"
)

// Collect gathers all five volatile records. Per §4.4 and §5, this
// completes entirely before any memory-subsystem task starts, since the
// memory subsystem's process selection consults the resulting process list.
func Collect(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeCancelled, err, "context cancelled before volatile collection")
	}

	facts, err := gatherSystemFacts()
	if err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeIoError, err, "unable to gather system facts")
	}

	processes, err := gatherProcesses()
	if err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeIoError, err, "unable to gather process list")
	}

	network, err := gatherNetwork()
	if err != nil {
		// Network enumeration frequently requires elevated privilege; a
		// failure here degrades the record rather than the collection.
		network = nil
	}

	memory, err := gatherMemoryStats()
	if err != nil {
		memory = MemoryStatsRecord{}
	}

	disks, err := gatherDisks()
	if err != nil {
		disks = nil
	}

	return &Snapshot{
		SystemFacts: facts,
		Processes:   processes,
		Network:     network,
		Memory:      memory,
		Disks:       disks,
	}, nil
}

// ProcessByPID returns the process record for pid from a prior snapshot, for
// use by the memory subsystem's happens-before dependency on this snapshot
// (§5, §4.5).
func (s *Snapshot) ProcessByPID(pid int) (ProcessRecord, bool) {
	for _, p := range s.Processes {
		if p.PID == pid {
			return p, true
		}
	}
	return ProcessRecord{}, false
}

func baseSystemFacts() SystemFacts {
	hostname, _ := os.Hostname()
	return SystemFacts{
		Hostname:        hostname,
		OperatingSystem: runtime.GOOS,
		Architecture:    runtime.GOARCH,
		CollectedAt:     time.Now().UTC(),
	}
}
