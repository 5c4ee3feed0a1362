package memalloc

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/internal/gpu/gpufake"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestAllocMemoryDeviceLocal(t *testing.T) {
	dev := gpufake.NewDevice()
	a := New(dev, testLogger())
	defer a.Close()

	alloc, err := a.AllocMemory(gpu.MemoryRequirements{Size: 1024, Alignment: 256, MemoryTypeBits: 0b111}, gpu.MemoryDeviceLocal)
	require.NoError(t, err)
	require.False(t, alloc.Dedicated)
	require.True(t, alloc.Memory.Valid())

	stats := a.Stats()
	require.Equal(t, int64(1024), stats[alloc.TypeIndex].Used)

	a.Free(alloc)
	stats = a.Stats()
	require.Equal(t, int64(0), stats[alloc.TypeIndex].Used)
}

func TestAllocMemoryHostVisibleIsMappable(t *testing.T) {
	dev := gpufake.NewDevice()
	a := New(dev, testLogger())
	defer a.Close()

	alloc, err := a.AllocMemory(gpu.MemoryRequirements{Size: 4096, Alignment: 256, MemoryTypeBits: 0b111}, gpu.MemoryHostVisible|gpu.MemoryHostCoherent)
	require.NoError(t, err)
	b := alloc.Map()
	require.Len(t, b, 4096)
	b[0] = 0xAB
	require.Equal(t, byte(0xAB), alloc.Map()[0])
}

func TestAllocMemoryLargeGoesDedicated(t *testing.T) {
	dev := gpufake.NewDevice()
	a := New(dev, testLogger())
	defer a.Close()

	big := a.types[0].devicePool.maxChunkSize
	alloc, err := a.AllocMemory(gpu.MemoryRequirements{Size: big, Alignment: 256, MemoryTypeBits: 0b111}, gpu.MemoryDeviceLocal)
	require.NoError(t, err)
	require.True(t, alloc.Dedicated)
}

func TestCreateImageResourcePrefersDedicatedForLargeTargets(t *testing.T) {
	dev := gpufake.NewDevice()
	a := New(dev, testLogger())
	defer a.Close()

	info := gpu.ImageCreateInfo{
		Type:   gpu.Image2D,
		Extent: gpu.Extent3D{Width: 4096, Height: 4096, Depth: 1},
		Usage:  gpu.ImageColorTarget,
		Tiling: gpu.TilingOptimal,
	}
	alloc, err := a.CreateImageResource(info, gpu.MemoryDeviceLocal)
	require.NoError(t, err)
	require.True(t, alloc.Dedicated)
	require.True(t, alloc.HasImage)
}

func TestCreateBufferResourceBindsMemory(t *testing.T) {
	dev := gpufake.NewDevice()
	a := New(dev, testLogger())
	defer a.Close()

	info := gpu.BufferCreateInfo{Size: 65536, Usage: gpu.BufferStorage, Exclusive: true}
	alloc, err := a.CreateBufferResource(info, gpu.MemoryDeviceLocal)
	require.NoError(t, err)
	require.True(t, alloc.HasBuffer)
	require.False(t, alloc.Dedicated)
}

func TestEvictionDrainsEmptyChunksOnClose(t *testing.T) {
	dev := gpufake.NewDevice()
	a := New(dev, testLogger())

	alloc, err := a.AllocMemory(gpu.MemoryRequirements{Size: 1024, Alignment: 256, MemoryTypeBits: 0b111}, gpu.MemoryDeviceLocal)
	require.NoError(t, err)
	a.Free(alloc)

	a.Close()
	stats := a.Stats()
	require.Equal(t, int64(0), stats[alloc.TypeIndex].Allocated)
}
