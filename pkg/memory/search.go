package memory

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/triagekit/engine/pkg/platform"
	"github.com/triagekit/engine/pkg/triageerrors"
)

// PatternByte is one byte of a search pattern: either a literal value to
// match exactly, or a wildcard (from a "??" token) that matches any byte.
type PatternByte struct {
	Value    byte
	Wildcard bool
}

// ParsePattern parses a hex pattern such as "4d5a??0200" into a []PatternByte,
// where each "??" pair is a wildcard nibble-pair. The pattern must have an
// even number of hex characters.
func ParsePattern(pattern string) ([]PatternByte, error) {
	pattern = strings.ReplaceAll(pattern, " ", "")
	if len(pattern)%2 != 0 {
		return nil, fmt.Errorf("pattern must have an even number of hex characters")
	}

	bytes := make([]PatternByte, 0, len(pattern)/2)
	for i := 0; i < len(pattern); i += 2 {
		pair := pattern[i : i+2]
		if pair == "??" {
			bytes = append(bytes, PatternByte{Wildcard: true})
			continue
		}
		decoded, err := hex.DecodeString(pair)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern byte %q: %w", pair, err)
		}
		bytes = append(bytes, PatternByte{Value: decoded[0]})
	}
	return bytes, nil
}

// MatchRecord is one pattern hit, per §4.5's {pid, region_base, match_offset}
// record shape.
type MatchRecord struct {
	PID          int    `json:"pid"`
	RegionBase   uint64 `json:"region_base"`
	MatchOffset  uint64 `json:"match_offset"`
}

// Search scans every region of pid accepted by filter for pattern, handling
// matches that span chunk boundaries by retaining a len(pattern)-1 byte
// overlap between successive chunk reads.
func Search(ctx context.Context, adapter platform.Adapter, pid int, pattern []PatternByte, filter RegionFilter) ([]MatchRecord, error) {
	if len(pattern) == 0 {
		return nil, fmt.Errorf("search pattern must not be empty")
	}

	handle, err := adapter.OpenProcess(ctx, pid)
	if err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeProcessGone, err, fmt.Sprintf("unable to open process %d", pid))
	}
	defer handle.Close()

	regions, err := adapter.EnumerateRegions(ctx, handle)
	if err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeIoError, err, fmt.Sprintf("unable to enumerate regions for process %d", pid))
	}

	var matches []MatchRecord
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return matches, err
		}
		if !filter.Accepts(region) {
			continue
		}

		regionMatches, err := searchRegion(ctx, adapter, handle, region, pattern)
		if err != nil {
			// A single unreadable region does not abort the scan, per §4.5's
			// per-region failure semantics.
			continue
		}
		matches = append(matches, regionMatches...)
	}

	return matches, nil
}

func searchRegion(ctx context.Context, adapter platform.Adapter, handle platform.ProcessHandle, region platform.MemoryRegion, pattern []PatternByte) ([]MatchRecord, error) {
	overlap := len(pattern) - 1
	var matches []MatchRecord

	var carry []byte
	carryBase := region.BaseAddress

	buffer := make([]byte, chunkSize)
	remaining := region.Size
	address := region.BaseAddress

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return matches, err
		}

		readSize := uint64(chunkSize)
		if remaining < readSize {
			readSize = remaining
		}

		n, readErr := adapter.ReadMemory(ctx, handle, address, buffer[:readSize])
		if n > 0 {
			window := append(carry, buffer[:n]...)
			windowBase := carryBase

			for _, offset := range matchAll(window, pattern) {
				matches = append(matches, MatchRecord{
					PID:         handle.PID(),
					RegionBase:  region.BaseAddress,
					MatchOffset: (windowBase + uint64(offset)) - region.BaseAddress,
				})
			}

			if overlap > 0 && len(window) > overlap {
				carry = append([]byte(nil), window[len(window)-overlap:]...)
				carryBase = windowBase + uint64(len(window)-overlap)
			} else {
				carry = append([]byte(nil), window...)
				carryBase = windowBase
			}

			address += uint64(n)
			remaining -= uint64(n)
		}
		if readErr != nil {
			return matches, triageerrors.Wrap(triageerrors.CodeRegionUnreadable, readErr, "region read failed during search")
		}
		if uint64(n) < readSize {
			break
		}
	}

	return matches, nil
}

// matchAll returns every starting offset in data where pattern matches,
// honoring wildcard bytes.
func matchAll(data []byte, pattern []PatternByte) []int {
	var offsets []int
	if len(data) < len(pattern) {
		return offsets
	}
	for i := 0; i <= len(data)-len(pattern); i++ {
		if matchAt(data, i, pattern) {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

func matchAt(data []byte, offset int, pattern []PatternByte) bool {
	for i, p := range pattern {
		if p.Wildcard {
			continue
		}
		if data[offset+i] != p.Value {
			return false
		}
	}
	return true
}
