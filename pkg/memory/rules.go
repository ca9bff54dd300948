package memory

import (
	"context"
	"fmt"

	"github.com/triagekit/engine/pkg/platform"
	"github.com/triagekit/engine/pkg/triageerrors"
)

// RuleEngine is the external collaborator contract for rule-based scanning
// (§4.5): a compiled rule set exposes Scan over an arbitrary byte slice,
// returning the names of every rule that matched. Production rule engines
// (e.g. a YARA binding) implement this by wrapping their own compile/scan
// API; no specific engine is bundled here.
type RuleEngine interface {
	// Scan evaluates every compiled rule against data and returns the names
	// of the rules that matched.
	Scan(data []byte) ([]string, error)
}

// RuleCompiler compiles rule source text (inline or file-derived) into a
// RuleEngine.
type RuleCompiler interface {
	Compile(source string) (RuleEngine, error)
}

// RuleMatchRecord is one rule hit, analogous to MatchRecord but carrying the
// matched rule's name instead of a byte offset.
type RuleMatchRecord struct {
	PID        int    `json:"pid"`
	RegionBase uint64 `json:"region_base"`
	RuleName   string `json:"rule_name"`
}

// RuleScan feeds every region of pid accepted by filter, one region at a
// time, to engine.Scan, per §4.5.
func RuleScan(ctx context.Context, adapter platform.Adapter, pid int, engine RuleEngine, filter RegionFilter) ([]RuleMatchRecord, error) {
	handle, err := adapter.OpenProcess(ctx, pid)
	if err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeProcessGone, err, fmt.Sprintf("unable to open process %d", pid))
	}
	defer handle.Close()

	regions, err := adapter.EnumerateRegions(ctx, handle)
	if err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeIoError, err, fmt.Sprintf("unable to enumerate regions for process %d", pid))
	}

	var matches []RuleMatchRecord
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return matches, err
		}
		if !filter.Accepts(region) {
			continue
		}

		data, _, err := readWholeRegion(ctx, adapter, handle, region)
		if err != nil {
			// Per-region errors are recorded but do not abort the scan.
			continue
		}

		ruleNames, err := engine.Scan(data)
		if err != nil {
			continue
		}
		for _, name := range ruleNames {
			matches = append(matches, RuleMatchRecord{
				PID:        pid,
				RegionBase: region.BaseAddress,
				RuleName:   name,
			})
		}
	}

	return matches, nil
}

// readWholeRegion reads an entire region in chunkSize-bounded slices,
// returning whatever bytes were successfully read even on a partial
// terminal read.
func readWholeRegion(ctx context.Context, adapter platform.Adapter, handle platform.ProcessHandle, region platform.MemoryRegion) ([]byte, bool, error) {
	data := make([]byte, 0, region.Size)
	buffer := make([]byte, chunkSize)
	remaining := region.Size
	address := region.BaseAddress
	partial := false

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return data, true, err
		}

		readSize := uint64(chunkSize)
		if remaining < readSize {
			readSize = remaining
		}

		n, readErr := adapter.ReadMemory(ctx, handle, address, buffer[:readSize])
		if n > 0 {
			data = append(data, buffer[:n]...)
			address += uint64(n)
			remaining -= uint64(n)
		}
		if readErr != nil {
			return data, true, triageerrors.Wrap(triageerrors.CodeRegionUnreadable, readErr, "region read failed during rule scan")
		}
		if uint64(n) < readSize {
			partial = true
			break
		}
	}

	return data, partial, nil
}
