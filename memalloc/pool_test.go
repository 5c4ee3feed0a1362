package memalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dxvkgo/core/internal/gpu/gpufake"
)

// TestPoolRoundTrip exercises the literal scenario from spec.md §8
// ("Page allocator round-trip"): a pool with min chunk 4 MiB, max chunk
// 256 MiB, fed 100 allocations of 256 KiB aligned to 64 KiB. The first
// allocation must grow the pool to 4 MiB; the chunk holds exactly
// 4MiB/256KiB = 16 of them, so the 17th allocation must trigger growth
// to 8 MiB.
func TestPoolRoundTrip(t *testing.T) {
	dev := gpufake.NewDevice()
	p := newPool(256<<20, false)
	const allocSize = 256 << 10

	var chunkCounts []int
	for i := 0; i < 100; i++ {
		c, _, err := p.alloc(dev, 0, allocSize)
		require.NoError(t, err)
		require.NotNil(t, c)
		chunkCounts = append(chunkCounts, len(p.chunks))
	}

	require.Equal(t, int64(4<<20), p.chunks[0].size, "first chunk must be MinChunkSize")
	require.Len(t, p.chunks, 2, "17th allocation must have grown a second chunk")
	require.Equal(t, int64(8<<20), p.chunks[1].size, "second chunk must double to 8 MiB")

	require.Equal(t, 1, chunkCounts[15], "16th allocation still fits the first 4MiB chunk")
	require.Equal(t, 2, chunkCounts[16], "17th allocation grew a new chunk")
}

func TestPoolFreeReturnsPagesForReuse(t *testing.T) {
	dev := gpufake.NewDevice()
	p := newPool(256<<20, false)
	const size = 256 << 10

	c, off, err := p.alloc(dev, 0, size)
	require.NoError(t, err)
	require.Equal(t, int64(0), off)

	p.free(c, off, size)
	require.True(t, c.empty())

	c2, off2, err := p.alloc(dev, 0, size)
	require.NoError(t, err)
	require.Same(t, c, c2)
	require.Equal(t, int64(0), off2)
}
