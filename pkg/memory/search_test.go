package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/triagekit/engine/pkg/platform"
)

// fakeProcessHandle and fakeAdapter provide a process memory image backed by
// a plain byte slice so the rolling chunk-boundary search logic can be
// exercised deterministically.
type fakeProcessHandle struct {
	pid int
}

func (h *fakeProcessHandle) Close() error { return nil }
func (h *fakeProcessHandle) PID() int     { return h.pid }

type fakeMemoryAdapter struct {
	platform.Adapter
	image   []byte
	regions []platform.MemoryRegion
}

func (a *fakeMemoryAdapter) OpenProcess(ctx context.Context, pid int) (platform.ProcessHandle, error) {
	return &fakeProcessHandle{pid: pid}, nil
}

func (a *fakeMemoryAdapter) EnumerateRegions(ctx context.Context, handle platform.ProcessHandle) ([]platform.MemoryRegion, error) {
	return a.regions, nil
}

func (a *fakeMemoryAdapter) ReadMemory(ctx context.Context, handle platform.ProcessHandle, address uint64, buffer []byte) (int, error) {
	offset := int(address)
	if offset >= len(a.image) {
		return 0, nil
	}
	n := copy(buffer, a.image[offset:])
	return n, nil
}

func TestParsePatternWithWildcard(t *testing.T) {
	parsed, err := ParsePattern("4d5a??0200")
	require.NoError(t, err)
	require.Equal(t, []PatternByte{
		{Value: 0x4d}, {Value: 0x5a}, {Wildcard: true}, {Value: 0x02}, {Value: 0x00},
	}, parsed)
}

func TestParsePatternOddLength(t *testing.T) {
	_, err := ParsePattern("4d5")
	require.Error(t, err)
}

func TestSearchFindsMatchSpanningChunkBoundary(t *testing.T) {
	pattern, err := ParsePattern("cafebabe")
	require.NoError(t, err)

	// Place the 4-byte needle straddling the chunk boundary: three bytes at
	// the tail of the first 4 MiB chunk, one byte at the start of the next.
	image := make([]byte, chunkSize+16)
	needle := []byte{0xca, 0xfe, 0xba, 0xbe}
	straddleStart := chunkSize - 3
	copy(image[straddleStart:], needle)

	adapter := &fakeMemoryAdapter{
		image: image,
		regions: []platform.MemoryRegion{
			{BaseAddress: 0, Size: uint64(len(image)), Type: platform.RegionHeap, Protection: platform.Protection{Read: true}},
		},
	}

	matches, err := Search(context.Background(), adapter, 1234, pattern, RegionFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.EqualValues(t, straddleStart, matches[0].MatchOffset)
}

func TestSearchFindsMultipleNonOverlappingMatches(t *testing.T) {
	pattern, err := ParsePattern("ff00ff")
	require.NoError(t, err)

	image := make([]byte, 64)
	copy(image[4:], []byte{0xff, 0x00, 0xff})
	copy(image[40:], []byte{0xff, 0x00, 0xff})

	adapter := &fakeMemoryAdapter{
		image: image,
		regions: []platform.MemoryRegion{
			{BaseAddress: 0, Size: uint64(len(image)), Type: platform.RegionHeap, Protection: platform.Protection{Read: true}},
		},
	}

	matches, err := Search(context.Background(), adapter, 1, pattern, RegionFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.EqualValues(t, 4, matches[0].MatchOffset)
	require.EqualValues(t, 40, matches[1].MatchOffset)
}

func TestRegionFilterAccepts(t *testing.T) {
	filter := RegionFilter{
		MinSize:  0x1000,
		Readable: true,
		TypeMask: map[platform.RegionType]bool{platform.RegionHeap: true},
	}

	require.True(t, filter.Accepts(platform.MemoryRegion{
		Size: 0x2000, Type: platform.RegionHeap, Protection: platform.Protection{Read: true},
	}))
	require.False(t, filter.Accepts(platform.MemoryRegion{
		Size: 0x2000, Type: platform.RegionStack, Protection: platform.Protection{Read: true},
	}))
	require.False(t, filter.Accepts(platform.MemoryRegion{
		Size: 0x100, Type: platform.RegionHeap, Protection: platform.Protection{Read: true},
	}))
}
