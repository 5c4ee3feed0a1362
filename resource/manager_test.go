package resource

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/internal/gpu/gpufake"
	"github.com/dxvkgo/core/memalloc"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestManager(t *testing.T) (*Manager, *gpufake.Device, *memalloc.Allocator) {
	t.Helper()
	dev := gpufake.NewDevice()
	allocator := memalloc.New(dev, testLogger())
	t.Cleanup(allocator.Close)
	return NewManager(dev, allocator), dev, allocator
}

func TestCreateBufferOwnsMemoryAndBuffer(t *testing.T) {
	m, _, _ := newTestManager(t)

	buf, err := m.CreateBuffer(BufferCreateInfo{
		Size:      65536,
		Usage:     gpu.BufferStorage,
		Exclusive: true,
	}, gpu.MemoryDeviceLocal)
	require.NoError(t, err)
	require.True(t, buf.Allocation().Owns(OwnsMemory))
	require.True(t, buf.Allocation().Owns(OwnsBuffer))
	require.False(t, buf.Allocation().Owns(OwnsImage))

	m.DestroyBuffer(buf)
}

func TestBufferViewCachedUntilStorageReassigned(t *testing.T) {
	m, _, _ := newTestManager(t)

	buf, err := m.CreateBuffer(BufferCreateInfo{
		Size:      65536,
		Usage:     gpu.BufferStorage,
		Exclusive: true,
	}, gpu.MemoryDeviceLocal)
	require.NoError(t, err)

	key := BufferViewKey{Format: 37, Usage: gpu.BufferStorage, Offset: 0, Size: 65536}
	v1, err := buf.View(key)
	require.NoError(t, err)
	v2, err := buf.View(key)
	require.NoError(t, err)
	require.Equal(t, v1, v2)

	other, err := m.CreateBufferResource(gpu.BufferCreateInfo{Size: 65536, Usage: gpu.BufferStorage, Exclusive: true}, gpu.MemoryDeviceLocal)
	require.NoError(t, err)
	buf.SetStorage(other)

	v3, err := buf.View(key)
	require.NoError(t, err)
	require.NotEqual(t, v1, v3)
}

func TestCreateImageViewRoundTrip(t *testing.T) {
	m, _, _ := newTestManager(t)

	img, err := m.CreateImage(gpu.ImageCreateInfo{
		Type:   gpu.Image2D,
		Extent: gpu.Extent3D{Width: 256, Height: 256, Depth: 1},
		Usage:  gpu.ImageSampled,
		Tiling: gpu.TilingOptimal,
	}, gpu.MemoryDeviceLocal)
	require.NoError(t, err)

	key := ImageViewKey{ViewType: 1, Format: 37, Usage: gpu.ImageSampled, Aspect: 1, MipLevels: 1, LayerCount: 1}
	v, err := img.View(key)
	require.NoError(t, err)
	require.NotZero(t, v.Handle)

	m.DestroyImage(img)
}

func TestResourceIDStableAcrossViewInvalidation(t *testing.T) {
	m, _, _ := newTestManager(t)

	buf, err := m.CreateBuffer(BufferCreateInfo{Size: 4096, Usage: gpu.BufferUniform, Exclusive: true}, gpu.MemoryDeviceLocal)
	require.NoError(t, err)

	id1 := buf.Allocation().ResourceID()
	_, err = buf.View(BufferViewKey{Format: 1, Size: 4096})
	require.NoError(t, err)
	id2 := buf.Allocation().ResourceID()
	require.Equal(t, id1, id2)
	require.Less(t, id1, uint64(1)<<48)
}
