package device

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/dxvkgo/core/fence"
	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/internal/gpu/gpufake"
	"github.com/dxvkgo/core/resource"
	"github.com/dxvkgo/core/sparse"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestDevice(t *testing.T) (*Device, *gpufake.Device) {
	t.Helper()
	fake := gpufake.NewDevice()
	d, err := New(fake, Config{Log: testLogger()})
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, fake
}

func TestCreateBufferInstallsSparsePageTable(t *testing.T) {
	d, _ := newTestDevice(t)

	buf, err := d.CreateBuffer(BufferCreateInfo{
		Info: resource.BufferCreateInfo{
			Size:      4 << 20,
			Usage:     gpu.BufferStorage,
			Sparse:    true,
			Exclusive: true,
		},
		Properties: gpu.MemoryDeviceLocal,
	})
	require.NoError(t, err)
	defer d.DestroyBuffer(buf)

	table, ok := buf.Allocation().Sparse.(*sparse.PageTable)
	require.True(t, ok, "Sparse field should hold a *sparse.PageTable")
	require.NotNil(t, table)
}

func TestCreateBufferNonSparseLeavesSparseNil(t *testing.T) {
	d, _ := newTestDevice(t)

	buf, err := d.CreateBuffer(BufferCreateInfo{
		Info:       resource.BufferCreateInfo{Size: 4096, Usage: gpu.BufferStorage, Exclusive: true},
		Properties: gpu.MemoryDeviceLocal,
	})
	require.NoError(t, err)
	defer d.DestroyBuffer(buf)

	require.Nil(t, buf.Allocation().Sparse)
}

func TestBindSparseReachesDevice(t *testing.T) {
	d, fake := newTestDevice(t)

	buf, err := d.CreateBuffer(BufferCreateInfo{
		Info: resource.BufferCreateInfo{
			Size:      4 << 20,
			Usage:     gpu.BufferStorage,
			Sparse:    true,
			Exclusive: true,
		},
		Properties: gpu.MemoryDeviceLocal,
	})
	require.NoError(t, err)
	defer d.DestroyBuffer(buf)

	mem, err := fake.AllocateMemory(0, sparse.PageSize)
	require.NoError(t, err)
	defer fake.FreeMemory(mem)

	var submission sparse.BindSubmission
	submission.BindBufferMemory(
		sparse.BufferBindKey{Buffer: buf.Handle(), Offset: 0, Size: sparse.PageSize},
		sparse.PageHandle{Memory: mem, Offset: 0, Length: sparse.PageSize},
	)

	require.NoError(t, d.BindSparse(&submission))
}

func TestBindSparseEmptySubmissionIsNoop(t *testing.T) {
	d, _ := newTestDevice(t)

	var submission sparse.BindSubmission
	require.NoError(t, d.BindSparse(&submission))
}

func TestCreateImageInstallsSparsePageTable(t *testing.T) {
	d, _ := newTestDevice(t)

	info := ImageCreateInfo{
		Info: gpu.ImageCreateInfo{
			Type:      gpu.Image2D,
			Format:    1,
			Extent:    gpu.Extent3D{Width: 256, Height: 256, Depth: 1},
			MipLevels: 1,
			Layers:    1,
			Samples:   1,
			Usage:     gpu.ImageSampled,
			Sparse:    true,
		},
		Properties: gpu.MemoryDeviceLocal,
	}
	img, err := d.CreateImage(info, SparseImageProperties{
		PageRegionExtent: gpu.Extent3D{Width: 64, Height: 64, Depth: 1},
		PagedMipCount:    1,
	})
	require.NoError(t, err)
	defer d.DestroyImage(img)

	table, ok := img.Allocation().Sparse.(*sparse.PageTable)
	require.True(t, ok)
	require.NotNil(t, table)
}

func TestGetMemoryStatsAggregatesByHeap(t *testing.T) {
	d, _ := newTestDevice(t)

	buf, err := d.CreateBuffer(BufferCreateInfo{
		Info:       resource.BufferCreateInfo{Size: 1 << 20, Usage: gpu.BufferStorage, Exclusive: true},
		Properties: gpu.MemoryDeviceLocal,
	})
	require.NoError(t, err)
	defer d.DestroyBuffer(buf)

	stats := d.GetMemoryStats(0)
	require.Greater(t, stats.Allocated, int64(0))
}

func TestCreateFenceAndWait(t *testing.T) {
	d, _ := newTestDevice(t)

	f, err := d.CreateFence(fence.CreateInfo{InitialValue: 0})
	require.NoError(t, err)
	defer f.Close()

	reached, err := d.WaitForFence(f, 0, time.Second)
	require.NoError(t, err)
	require.True(t, reached)
}

func TestWaitForIdle(t *testing.T) {
	d, _ := newTestDevice(t)
	require.NoError(t, d.WaitForIdle())
}

func TestImportBufferDoesNotOwnHandle(t *testing.T) {
	d, fake := newTestDevice(t)

	handle, err := fake.CreateBuffer(gpu.BufferCreateInfo{Size: 4096, Usage: gpu.BufferStorage})
	require.NoError(t, err)

	buf, err := d.ImportBuffer(ImportBufferInfo{
		BufferCreateInfo: BufferCreateInfo{Info: resource.BufferCreateInfo{Size: 4096}},
		NativeHandle:     handle,
	})
	require.NoError(t, err)
	require.False(t, buf.Allocation().Owns(resource.OwnsBuffer))

	d.DestroyBuffer(buf)
	fake.DestroyBuffer(handle)
}
