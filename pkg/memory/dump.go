package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/triagekit/engine/pkg/platform"
	"github.com/triagekit/engine/pkg/triageerrors"
)

// DumpOptions configures a Dump collection.
type DumpOptions struct {
	Filter        RegionFilter
	MaxTotalBytes uint64
	DestinationDir string
}

// processMetadata is written as metadata.json alongside each process's dump
// files.
type processMetadata struct {
	PID          int                 `json:"pid"`
	CollectedAt  time.Time           `json:"collected_at"`
	RegionCount  int                 `json:"region_count"`
	SkippedCount int                 `json:"skipped_count"`
	TotalBytes   uint64              `json:"total_bytes"`
	Regions      []dumpedRegionEntry `json:"regions"`
}

type dumpedRegionEntry struct {
	BaseAddress uint64               `json:"base_address"`
	Size        uint64               `json:"size"`
	Type        platform.RegionType  `json:"type"`
	Protection  platform.Protection  `json:"protection"`
	BackingPath string               `json:"backing_path,omitempty"`
	DumpFile    string               `json:"dump_file,omitempty"`
	BytesRead   uint64               `json:"bytes_read"`
	Partial     bool                 `json:"partial"`
	Skipped     bool                 `json:"skipped"`
	Error       string               `json:"error,omitempty"`
}

// Dump acquires the accepted regions of pid's memory, writing one
// <type>_<hex-base>_<size>.dmp file per region plus metadata.json and
// memory_map.txt, all under opts.DestinationDir, per §4.5's OPEN →
// ENUMERATE → FILTER → READ_CHUNK* → WRITE state machine.
func Dump(ctx context.Context, adapter platform.Adapter, sink FileSink, pid int, opts DumpOptions) (ProcessOutcome, error) {
	outcome := ProcessOutcome{PID: pid}

	handle, err := adapter.OpenProcess(ctx, pid)
	if err != nil {
		outcome.Error = err.Error()
		return outcome, triageerrors.Wrap(triageerrors.CodeProcessGone, err, fmt.Sprintf("unable to open process %d", pid))
	}
	defer handle.Close()

	regions, err := adapter.EnumerateRegions(ctx, handle)
	if err != nil {
		outcome.Error = err.Error()
		return outcome, triageerrors.Wrap(triageerrors.CodeIoError, err, fmt.Sprintf("unable to enumerate regions for process %d", pid))
	}

	meta := processMetadata{PID: pid, CollectedAt: time.Now().UTC()}
	var mapLines []string
	var totalBytes uint64

	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			outcome.Error = "cancelled"
			break
		}

		entry := dumpedRegionEntry{
			BaseAddress: region.BaseAddress,
			Size:        region.Size,
			Type:        region.Type,
			Protection:  region.Protection,
			BackingPath: region.BackingPath,
		}

		if !opts.Filter.Accepts(region) {
			entry.Skipped = true
			meta.SkippedCount++
			meta.Regions = append(meta.Regions, entry)
			mapLines = append(mapLines, formatMapLine(region, "SKIPPED"))
			continue
		}

		if opts.MaxTotalBytes > 0 && totalBytes >= opts.MaxTotalBytes {
			entry.Skipped = true
			entry.Error = "max_total_bytes reached"
			meta.SkippedCount++
			meta.Regions = append(meta.Regions, entry)
			mapLines = append(mapLines, formatMapLine(region, "SKIPPED-CAP"))
			continue
		}

		dumpName := fmt.Sprintf("%s_%016x_%d.dmp", regionTypeSlug(region.Type), region.BaseAddress, region.Size)
		entry.DumpFile = dumpName

		bytesRead, partial, readErr := dumpRegion(ctx, adapter, handle, region, sink, path.Join(opts.DestinationDir, dumpName), opts.MaxTotalBytes, &totalBytes)
		entry.BytesRead = bytesRead
		entry.Partial = partial
		if readErr != nil {
			entry.Error = readErr.Error()
		}

		meta.Regions = append(meta.Regions, entry)
		mapLines = append(mapLines, formatMapLine(region, regionStatusLabel(entry)))

		outcome.Regions = append(outcome.Regions, RegionOutcome{
			Region:    region,
			Skipped:   entry.Skipped,
			Error:     entry.Error,
			BytesRead: bytesRead,
			Partial:   partial,
		})

		if opts.MaxTotalBytes > 0 && totalBytes >= opts.MaxTotalBytes {
			// The cap was reached mid-region: close cleanly and skip the rest.
			break
		}
	}

	meta.RegionCount = len(regions)
	meta.TotalBytes = totalBytes

	if err := writeJSONFile(sink, path.Join(opts.DestinationDir, "metadata.json"), meta); err != nil {
		return outcome, triageerrors.Wrap(triageerrors.CodeIoError, err, "unable to write memory metadata.json")
	}
	if err := writeLinesFile(sink, path.Join(opts.DestinationDir, "memory_map.txt"), mapLines); err != nil {
		return outcome, triageerrors.Wrap(triageerrors.CodeIoError, err, "unable to write memory_map.txt")
	}

	return outcome, nil
}

// dumpRegion reads region in chunkSize-bounded slices, writing each to the
// sink's dump file and accumulating *total toward the global cap.
func dumpRegion(ctx context.Context, adapter platform.Adapter, handle platform.ProcessHandle, region platform.MemoryRegion, sink FileSink, relPath string, maxTotal uint64, total *uint64) (uint64, bool, error) {
	writer, err := sink.Create(relPath)
	if err != nil {
		return 0, false, err
	}
	defer writer.Close()

	var written uint64
	partial := false
	remaining := region.Size
	address := region.BaseAddress
	buffer := make([]byte, chunkSize)

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return written, true, err
		}
		if maxTotal > 0 && *total >= maxTotal {
			partial = true
			break
		}

		readSize := uint64(chunkSize)
		if remaining < readSize {
			readSize = remaining
		}
		if maxTotal > 0 && *total+readSize > maxTotal {
			readSize = maxTotal - *total
		}

		n, readErr := adapter.ReadMemory(ctx, handle, address, buffer[:readSize])
		if n > 0 {
			if _, werr := writer.Write(buffer[:n]); werr != nil {
				return written, true, werr
			}
			written += uint64(n)
			*total += uint64(n)
			address += uint64(n)
			remaining -= uint64(n)
		}
		if readErr != nil {
			return written, true, triageerrors.Wrap(triageerrors.CodeRegionUnreadable, readErr, "region read failed")
		}
		if uint64(n) < readSize {
			partial = true
			break
		}
	}

	return written, partial, nil
}

func formatMapLine(region platform.MemoryRegion, status string) string {
	return fmt.Sprintf("%016x-%016x %s %s %s",
		region.BaseAddress, region.BaseAddress+region.Size,
		protectionString(region.Protection), region.Type, status)
}

func protectionString(p platform.Protection) string {
	r, w, x := "-", "-", "-"
	if p.Read {
		r = "r"
	}
	if p.Write {
		w = "w"
	}
	if p.Execute {
		x = "x"
	}
	return r + w + x
}

func regionStatusLabel(entry dumpedRegionEntry) string {
	if entry.Error != "" {
		return "ERROR"
	}
	if entry.Partial {
		return "PARTIAL"
	}
	return "OK"
}

func regionTypeSlug(t platform.RegionType) string {
	switch t {
	case platform.RegionStack:
		return "stack"
	case platform.RegionHeap:
		return "heap"
	case platform.RegionCode:
		return "code"
	case platform.RegionMappedFile:
		return "mapped"
	default:
		return "other"
	}
}

func writeJSONFile(sink FileSink, relPath string, v any) error {
	writer, err := sink.Create(relPath)
	if err != nil {
		return err
	}
	defer writer.Close()

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeLinesFile(sink FileSink, relPath string, lines []string) error {
	writer, err := sink.Create(relPath)
	if err != nil {
		return err
	}
	defer writer.Close()

	for _, line := range lines {
		if _, err := writer.Write([]byte(line + "\n")); err != nil {
			return err
		}
	}
	return nil
}
