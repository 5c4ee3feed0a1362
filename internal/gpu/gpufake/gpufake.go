// Package gpufake implements gpu.Device entirely in Go, with no cgo
// and no GPU present. It exists so that memalloc, resource, barrier,
// sparse, samplerpool, fence and submit can be unit-tested against a
// believable but fully simulated modern API: real timeline-semaphore
// wait/signal semantics via sync.Cond, real memory-type/heap
// bookkeeping, and buffer/image handles that behave like real ones
// (stable, comparable, freed exactly once) without ever talking to a
// driver.
package gpufake

import (
	"sync"
	"time"

	"github.com/dxvkgo/core/internal/gpu"
)

// Device is a fully in-memory gpu.Device.
type Device struct {
	mu   sync.Mutex
	next uintptr

	types []gpu.MemoryType
	heaps []gpu.MemoryHeap
	used  []int64

	mem map[uintptr]*memAlloc

	sems  map[uintptr]*semaphore
	bufs  map[uintptr]*bufObj
	imgs  map[uintptr]*imgObj
	smpls map[uintptr]struct{}

	bufViews map[uintptr]struct{}
	imgViews map[uintptr]struct{}

	barrierCalls []BarrierCall
}

// BarrierCall records one CmdPipelineBarrier invocation, so tests of
// packages built on top of gpu.CommandDevice (barrier, submit) can
// assert on what was flushed without a real driver to observe.
type BarrierCall struct {
	Mem []gpu.MemoryBarrier
	Buf []gpu.BufferBarrier
	Img []gpu.ImageBarrier
}

// BarrierCalls returns every CmdPipelineBarrier call recorded so far.
func (d *Device) BarrierCalls() []BarrierCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]BarrierCall(nil), d.barrierCalls...)
}

type memAlloc struct {
	typ  int
	size int64
	data []byte
}

type bufObj struct {
	info    gpu.BufferCreateInfo
	bound   bool
	address uint64
}

type imgObj struct {
	info  gpu.ImageCreateInfo
	bound bool
}

type semaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value uint64
}

// NewDevice returns a fake device with three memory types, mirroring
// the common device-local / host-visible+coherent / host-visible+cached
// split spec.md §3 describes: the device-local type on heap 0 and both
// host-visible types sharing heap 1.
func NewDevice() *Device {
	d := &Device{
		mem:   make(map[uintptr]*memAlloc),
		sems:  make(map[uintptr]*semaphore),
		bufs:  make(map[uintptr]*bufObj),
		imgs:  make(map[uintptr]*imgObj),
		smpls: make(map[uintptr]struct{}),
		bufViews: make(map[uintptr]struct{}),
		imgViews: make(map[uintptr]struct{}),
		heaps: []gpu.MemoryHeap{
			{Index: 0, Size: 256 << 20, DeviceLocal: true},
			{Index: 1, Size: 256 << 20, DeviceLocal: false},
		},
	}
	d.types = []gpu.MemoryType{
		{Index: 0, Properties: gpu.MemoryDeviceLocal, HeapIndex: 0},
		{Index: 1, Properties: gpu.MemoryHostVisible | gpu.MemoryHostCoherent, HeapIndex: 1},
		{Index: 2, Properties: gpu.MemoryHostVisible | gpu.MemoryHostCached, HeapIndex: 1},
	}
	d.used = make([]int64, len(d.heaps))
	return d
}

func (d *Device) handle() uintptr {
	d.next++
	return d.next
}

func (d *Device) MemoryTypes() []gpu.MemoryType { return d.types }
func (d *Device) MemoryHeaps() []gpu.MemoryHeap { return d.heaps }

func (d *Device) AllocateMemory(typeIndex int, size int64) (gpu.DeviceMemory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	heap := d.types[typeIndex].HeapIndex
	if d.used[heap]+size > d.heaps[heap].Size {
		return gpu.DeviceMemory{}, gpu.ErrOutOfMemory
	}
	d.used[heap] += size
	h := d.handle()
	d.mem[h] = &memAlloc{typ: typeIndex, size: size}
	return gpu.NewDeviceMemory(h, typeIndex, size), nil
}

func (d *Device) FreeMemory(m gpu.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.mem[m.Handle()]
	if !ok {
		return
	}
	heap := d.types[a.typ].HeapIndex
	d.used[heap] -= a.size
	delete(d.mem, m.Handle())
}

func (d *Device) MapMemory(m gpu.DeviceMemory) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := d.mem[m.Handle()]
	if a == nil {
		return nil, gpu.ErrInvalidHandle
	}
	if a.data == nil {
		a.data = make([]byte, a.size)
	}
	return a.data, nil
}

func (d *Device) UnmapMemory(gpu.DeviceMemory) {}

func (d *Device) CreateBuffer(info gpu.BufferCreateInfo) (gpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.handle()
	d.bufs[h] = &bufObj{info: info}
	return gpu.Buffer{Handle: h, Size: info.Size}, nil
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.bufs, b.Handle)
}

func (d *Device) BufferMemoryRequirements(b gpu.Buffer) gpu.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	o := d.bufs[b.Handle]
	size := int64(0)
	if o != nil {
		size = alignUp(o.info.Size, 256)
	}
	return gpu.MemoryRequirements{Size: size, Alignment: 256, MemoryTypeBits: 0b111}
}

func (d *Device) BindBufferMemory(b gpu.Buffer, m gpu.DeviceMemory, offset int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	o := d.bufs[b.Handle]
	if o == nil {
		return gpu.ErrInvalidHandle
	}
	o.bound = true
	if o.info.Usage&gpu.BufferShaderDeviceAddress != 0 {
		o.address = 0x10000000 + uint64(b.Handle)<<8 + uint64(offset)
	}
	return nil
}

func (d *Device) BufferDeviceAddress(b gpu.Buffer) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o := d.bufs[b.Handle]; o != nil {
		return o.address
	}
	return 0
}

func (d *Device) CreateImage(info gpu.ImageCreateInfo) (gpu.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.handle()
	d.imgs[h] = &imgObj{info: info}
	return gpu.Image{Handle: h}, nil
}

func (d *Device) DestroyImage(img gpu.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.imgs, img.Handle)
}

func (d *Device) ImageMemoryRequirements(img gpu.Image) gpu.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	o := d.imgs[img.Handle]
	size := int64(0)
	if o != nil {
		size = int64(o.info.Extent.Width) * int64(o.info.Extent.Height) * int64(o.info.Extent.Depth) * 4
		size = alignUp(size, 65536)
	}
	return gpu.MemoryRequirements{Size: size, Alignment: 65536, MemoryTypeBits: 0b111}
}

func (d *Device) ImageDedicatedRequirements(info gpu.ImageCreateInfo) gpu.DedicatedRequirements {
	// Mirror a common real-world heuristic: large render targets prefer
	// a dedicated allocation.
	big := int64(info.Extent.Width) * int64(info.Extent.Height) >= 2048*2048
	return gpu.DedicatedRequirements{PrefersDedicated: big && info.Usage&(gpu.ImageColorTarget|gpu.ImageDepthStencilTarget) != 0}
}

func (d *Device) BindImageMemory(img gpu.Image, m gpu.DeviceMemory, offset int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	o := d.imgs[img.Handle]
	if o == nil {
		return gpu.ErrInvalidHandle
	}
	o.bound = true
	return nil
}

func (d *Device) BufferImageGranularity() int64 { return 4096 }

func (d *Device) HeapBudget(heap int) (budget, usage int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.heaps[heap].Size, d.used[heap]
}

func (d *Device) CreateSampler(key gpu.SamplerKey) (gpu.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.handle()
	d.smpls[h] = struct{}{}
	return gpu.Sampler{Handle: h}, nil
}

func (d *Device) DestroySampler(s gpu.Sampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.smpls, s.Handle)
}

func (d *Device) CreateTimelineSemaphore(initial uint64) (gpu.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.handle()
	s := &semaphore{value: initial}
	s.cond = sync.NewCond(&s.mu)
	d.sems[h] = s
	return gpu.Semaphore{Handle: h}, nil
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sem := d.sems[s.Handle]; sem != nil {
		sem.mu.Lock()
		sem.cond.Broadcast()
		sem.mu.Unlock()
	}
	delete(d.sems, s.Handle)
}

func (d *Device) sem(s gpu.Semaphore) *semaphore {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sems[s.Handle]
}

func (d *Device) SemaphoreValue(s gpu.Semaphore) (uint64, error) {
	sem := d.sem(s)
	if sem == nil {
		return 0, gpu.ErrInvalidHandle
	}
	sem.mu.Lock()
	defer sem.mu.Unlock()
	return sem.value, nil
}

func (d *Device) SemaphoreSignal(s gpu.Semaphore, value uint64) error {
	sem := d.sem(s)
	if sem == nil {
		return gpu.ErrInvalidHandle
	}
	sem.mu.Lock()
	if value > sem.value {
		sem.value = value
	}
	sem.cond.Broadcast()
	sem.mu.Unlock()
	return nil
}

func (d *Device) SemaphoreWait(s gpu.Semaphore, value uint64, timeout time.Duration) (bool, error) {
	sem := d.sem(s)
	if sem == nil {
		return false, gpu.ErrInvalidHandle
	}
	deadline := time.Now().Add(timeout)
	done := make(chan struct{})
	var timedOut bool

	sem.mu.Lock()
	for sem.value < value {
		if timeout <= 0 {
			sem.mu.Unlock()
			return false, nil
		}
		sem.mu.Unlock()
		select {
		case <-time.After(time.Until(deadline)):
			sem.mu.Lock()
			if sem.value < value {
				timedOut = true
			}
			sem.mu.Unlock()
			goto out
		case <-pollWake(sem, value, done):
		}
		sem.mu.Lock()
	}
	sem.mu.Unlock()
out:
	close(done)
	return !timedOut, nil
}

// pollWake returns a channel that closes as soon as sem reaches value,
// or when done is closed by the caller giving up.
func pollWake(sem *semaphore, value uint64, done <-chan struct{}) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		sem.mu.Lock()
		for sem.value < value {
			waitCh := make(chan struct{})
			go func() { sem.cond.Wait(); close(waitCh) }()
			sem.mu.Unlock()
			select {
			case <-waitCh:
			case <-done:
				return
			}
			sem.mu.Lock()
		}
		sem.mu.Unlock()
	}()
	return ch
}

func (d *Device) ExportSemaphore(s gpu.Semaphore) (uintptr, error) {
	if d.sem(s) == nil {
		return 0, gpu.ErrInvalidHandle
	}
	return s.Handle, nil
}

func (d *Device) NewCommandList() (gpu.CommandList, error) {
	return gpu.CommandList{Handle: d.handle()}, nil
}
func (d *Device) ResetCommandList(gpu.CommandList) error { return nil }
func (d *Device) BeginCommandList(gpu.CommandList) error { return nil }
func (d *Device) EndCommandList(gpu.CommandList) error   { return nil }
func (d *Device) FreeCommandList(gpu.CommandList)        {}

func (d *Device) CmdPipelineBarrier(_ gpu.CommandList, mem []gpu.MemoryBarrier, buf []gpu.BufferBarrier, img []gpu.ImageBarrier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.barrierCalls = append(d.barrierCalls, BarrierCall{
		Mem: append([]gpu.MemoryBarrier(nil), mem...),
		Buf: append([]gpu.BufferBarrier(nil), buf...),
		Img: append([]gpu.ImageBarrier(nil), img...),
	})
}

func (d *Device) QueueSubmit(queueIndex int, batch gpu.SubmitBatch) error {
	for _, w := range batch.Waits {
		if ok, _ := d.SemaphoreWait(w.Semaphore, w.Value, 5*time.Second); !ok {
			return gpu.ErrTimeout
		}
	}
	for _, s := range batch.Signals {
		d.SemaphoreSignal(s.Semaphore, s.Value)
	}
	return nil
}

func (d *Device) QueuePresent(queueIndex int, info gpu.PresentInfo) (bool, error) {
	for _, w := range info.Waits {
		if ok, _ := d.SemaphoreWait(w.Semaphore, w.Value, 5*time.Second); !ok {
			return false, gpu.ErrTimeout
		}
	}
	return false, nil
}

func (d *Device) QueueWaitIdle(int) error  { return nil }
func (d *Device) DeviceWaitIdle() error    { return nil }

func (d *Device) QueueBindSparse(queueIndex int, info gpu.BindSparseInfo) error {
	for _, w := range info.Waits {
		if ok, _ := d.SemaphoreWait(w.Semaphore, w.Value, 5*time.Second); !ok {
			return gpu.ErrTimeout
		}
	}
	for _, s := range info.Signals {
		d.SemaphoreSignal(s.Semaphore, s.Value)
	}
	return nil
}

func (d *Device) ImageSparseRequirements(img gpu.Image) (gpu.Extent3D, uint32, int64, int64) {
	return gpu.Extent3D{Width: 64, Height: 64, Depth: 1}, 10, 65536, 65536
}

func (d *Device) CreateShaderModule(spirv []byte) (gpu.ShaderModule, error) {
	return gpu.ShaderModule{Handle: d.handle()}, nil
}
func (d *Device) DestroyShaderModule(gpu.ShaderModule) {}

func (d *Device) CreateBuiltinComputePipeline(layout uintptr, stage gpu.ShaderModule) (gpu.Pipeline, error) {
	return gpu.Pipeline{Handle: d.handle()}, nil
}
func (d *Device) CreateBuiltinGraphicsPipeline(layout uintptr, state any) (gpu.Pipeline, error) {
	return gpu.Pipeline{Handle: d.handle()}, nil
}
func (d *Device) DestroyPipeline(gpu.Pipeline) {}

func (d *Device) CreateBufferView(b gpu.Buffer, info gpu.BufferViewInfo) (gpu.BufferView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.bufs[b.Handle]; !ok {
		return gpu.BufferView{}, gpu.ErrInvalidHandle
	}
	h := d.handle()
	d.bufViews[h] = struct{}{}
	return gpu.BufferView{Handle: h}, nil
}

func (d *Device) DestroyBufferView(v gpu.BufferView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.bufViews, v.Handle)
}

func (d *Device) CreateImageView(img gpu.Image, info gpu.ImageViewInfo) (gpu.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.imgs[img.Handle]; !ok {
		return gpu.ImageView{}, gpu.ErrInvalidHandle
	}
	h := d.handle()
	d.imgViews[h] = struct{}{}
	return gpu.ImageView{Handle: h}, nil
}

func (d *Device) DestroyImageView(v gpu.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.imgViews, v.Handle)
}

func alignUp(v, a int64) int64 { return (v + a - 1) &^ (a - 1) }
