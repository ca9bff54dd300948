package collector

import (
	"context"
	"fmt"
	"path"

	"github.com/triagekit/engine/pkg/logging"
	"github.com/triagekit/engine/pkg/memory"
	"github.com/triagekit/engine/pkg/platform"
	"github.com/triagekit/engine/pkg/volatile"
)

// processMemorySubdir is where per-process memory dumps land under the
// staging root, per §6's output container layout.
const processMemorySubdir = "process_memory"

// collectMemory runs memory.Dump for every selected PID, writing each
// process's dump files, metadata.json, and memory_map.txt under
// stagingRoot/process_memory/<name>_<pid>/. A single process's failure
// (BackendUnavailable, the process having exited since the volatile
// snapshot) is recorded on its ProcessOutcome and does not stop the rest.
func collectMemory(ctx context.Context, adapter platform.Adapter, stagingRoot string, snapshot *volatile.Snapshot, opts MemoryOptions, logger *logging.Logger) []memory.ProcessOutcome {
	pids, names := resolveTargetPIDs(snapshot, opts)

	outcomes := make([]memory.ProcessOutcome, 0, len(pids))
	sink := stagingFileSink{root: stagingRoot}

	for _, pid := range pids {
		name := names[pid]
		if name == "" {
			name = "proc"
		}

		destinationDir := path.Join(processMemorySubdir, fmt.Sprintf("%s_%d", name, pid))

		outcome, err := memory.Dump(ctx, adapter, sink, pid, memory.DumpOptions{
			Filter:         opts.Filter,
			MaxTotalBytes:  opts.MaxTotalBytesPerProcess,
			DestinationDir: destinationDir,
		})
		if err != nil {
			logger.Warnf("memory acquisition failed for pid %d: %s", pid, err.Error())
		}

		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

// resolveTargetPIDs expands opts.TargetPIDs, or every process reachable via
// the prior volatile snapshot when TargetPIDs is empty, into a PID list plus
// a best-effort process-name lookup for directory naming, per §5's
// happens-before guarantee between C4 and C5.
func resolveTargetPIDs(snapshot *volatile.Snapshot, opts MemoryOptions) ([]int, map[int]string) {
	names := make(map[int]string)

	if len(opts.TargetPIDs) > 0 {
		if snapshot != nil {
			for _, pid := range opts.TargetPIDs {
				if process, ok := snapshot.ProcessByPID(pid); ok {
					names[pid] = process.Name
				}
			}
		}
		return opts.TargetPIDs, names
	}

	if snapshot == nil {
		return nil, names
	}

	pids := make([]int, 0, len(snapshot.Processes))
	for _, process := range snapshot.Processes {
		pids = append(pids, process.PID)
		names[process.PID] = process.Name
	}
	return pids, names
}
