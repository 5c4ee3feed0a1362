package sparse

import (
	"sort"

	"github.com/dxvkgo/core/internal/gpu"
)

// BufferBindKey orders buffer sparse binds by (buffer, offset, size)
// so adjacent binds can be merged (DxvkSparseBufferBindKey).
type BufferBindKey struct {
	Buffer gpu.Buffer
	Offset int64
	Size   int64
}

// ImageBindKey orders image sparse binds by (image, subresource,
// offset, extent) so adjacent regions can be merged
// (DxvkSparseImageBindKey).
type ImageBindKey struct {
	Image       gpu.Image
	Subresource uint32
	Offset      gpu.Offset3D
	Extent      gpu.Extent3D
}

// ImageOpaqueBindKey orders opaque image binds the same way buffer
// binds are ordered (DxvkSparseImageOpaqueBindKey).
type ImageOpaqueBindKey struct {
	Image gpu.Image
	Offset int64
	Size   int64
	Flags  uint32
}

// BindSubmission accumulates sparse page bindings for one submission,
// coalescing adjacent ranges bound to contiguous memory into single
// bind entries, grounded on DxvkSparseBindSubmission. All methods
// adding bindings assume the range either already exists (overwriting
// the old binding) or is disjoint from every existing range; this is
// trivially satisfied when binding one page at a time.
type BindSubmission struct {
	waitSemaphores       []gpu.Semaphore
	waitSemaphoreValues  []uint64
	signalSemaphores     []gpu.Semaphore
	signalSemaphoreValues []uint64

	bufferBinds      map[BufferBindKey]PageHandle
	imageBinds       map[ImageBindKey]PageHandle
	imageOpaqueBinds map[ImageOpaqueBindKey]PageHandle
}

// WaitSemaphore adds a timeline wait to the submission.
func (s *BindSubmission) WaitSemaphore(sem gpu.Semaphore, value uint64) {
	s.waitSemaphores = append(s.waitSemaphores, sem)
	s.waitSemaphoreValues = append(s.waitSemaphoreValues, value)
}

// SignalSemaphore adds a timeline signal to the submission.
func (s *BindSubmission) SignalSemaphore(sem gpu.Semaphore, value uint64) {
	s.signalSemaphores = append(s.signalSemaphores, sem)
	s.signalSemaphoreValues = append(s.signalSemaphoreValues, value)
}

// BindBufferMemory records (or overwrites) the binding for key.
func (s *BindSubmission) BindBufferMemory(key BufferBindKey, mem PageHandle) {
	if s.bufferBinds == nil {
		s.bufferBinds = make(map[BufferBindKey]PageHandle)
	}
	s.bufferBinds[key] = mem
}

// BindImageMemory records (or overwrites) the binding for key.
func (s *BindSubmission) BindImageMemory(key ImageBindKey, mem PageHandle) {
	if s.imageBinds == nil {
		s.imageBinds = make(map[ImageBindKey]PageHandle)
	}
	s.imageBinds[key] = mem
}

// BindImageOpaqueMemory records (or overwrites) the binding for key.
func (s *BindSubmission) BindImageOpaqueMemory(key ImageOpaqueBindKey, mem PageHandle) {
	if s.imageOpaqueBinds == nil {
		s.imageOpaqueBinds = make(map[ImageOpaqueBindKey]PageHandle)
	}
	s.imageOpaqueBinds[key] = mem
}

// MemoryBind is one coalesced opaque/buffer memory bind, merging
// adjacent resource ranges bound to contiguous memory into a single
// entry (VkSparseMemoryBind, DxvkSparseBindSubmission::
// tryMergeMemoryBind).
type MemoryBind struct {
	ResourceOffset int64
	Size           int64
	Memory         gpu.DeviceMemory
	MemoryOffset   int64
}

func tryMergeMemoryBind(old *MemoryBind, next MemoryBind) bool {
	if old.Memory != next.Memory {
		return false
	}
	if next.ResourceOffset != old.ResourceOffset+old.Size {
		return false
	}
	if old.Memory.Valid() && next.MemoryOffset != old.MemoryOffset+old.Size {
		return false
	}
	old.Size += next.Size
	return true
}

// ProcessBufferBinds produces the coalesced bind list for every
// pending buffer binding, grouped by buffer and merged where
// adjacent ranges map to contiguous memory.
func (s *BindSubmission) ProcessBufferBinds() map[gpu.Buffer][]MemoryBind {
	return processRangeBinds(s.bufferBinds, func(k BufferBindKey) (gpu.Buffer, int64, int64) {
		return k.Buffer, k.Offset, k.Size
	})
}

// ProcessOpaqueBinds produces the coalesced bind list for every
// pending opaque image binding, grouped by image.
func (s *BindSubmission) ProcessOpaqueBinds() map[gpu.Image][]MemoryBind {
	return processRangeBinds(s.imageOpaqueBinds, func(k ImageOpaqueBindKey) (gpu.Image, int64, int64) {
		return k.Image, k.Offset, k.Size
	})
}

// ImageBind is one per-subresource-region sparse image bind
// (VkSparseImageMemoryBind).
type ImageBind struct {
	Subresource  uint32
	Offset       gpu.Offset3D
	Extent       gpu.Extent3D
	Memory       gpu.DeviceMemory
	MemoryOffset int64
}

// ProcessImageBinds produces the pending per-subresource image binds,
// grouped by image. Unlike ProcessBufferBinds/ProcessOpaqueBinds these
// are not merged across entries: merging 3-D regions depends on which
// axis varies between adjacent binds, and spec.md leaves the general
// case open (see DESIGN.md's Open Question decision on the merge
// axis; ProcessOpaqueBinds/ProcessBufferBinds merge 1-D ranges only).
func (s *BindSubmission) ProcessImageBinds() map[gpu.Image][]ImageBind {
	if len(s.imageBinds) == 0 {
		return nil
	}
	result := make(map[gpu.Image][]ImageBind)
	for k, v := range s.imageBinds {
		result[k.Image] = append(result[k.Image], ImageBind{
			Subresource:  k.Subresource,
			Offset:       k.Offset,
			Extent:       k.Extent,
			Memory:       v.Memory,
			MemoryOffset: v.Offset,
		})
	}
	return result
}

// processRangeBinds is shared by ProcessBufferBinds/ProcessOpaqueBinds:
// both key types reduce to (resource, offset, size) ordering, so the
// sort-then-merge pass is identical.
func processRangeBinds[K comparable, R comparable](binds map[K]PageHandle, split func(K) (R, int64, int64)) map[R][]MemoryBind {
	if len(binds) == 0 {
		return nil
	}

	type entry struct {
		resource R
		offset   int64
		size     int64
		mem      PageHandle
	}
	entries := make([]entry, 0, len(binds))
	for k, v := range binds {
		r, off, size := split(k)
		entries = append(entries, entry{resource: r, offset: off, size: size, mem: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].resource != entries[j].resource {
			return compareResource(entries[i].resource, entries[j].resource)
		}
		if entries[i].offset != entries[j].offset {
			return entries[i].offset < entries[j].offset
		}
		return entries[i].size < entries[j].size
	})

	result := make(map[R][]MemoryBind)
	for _, e := range entries {
		bind := MemoryBind{ResourceOffset: e.offset, Size: e.size, Memory: e.mem.Memory, MemoryOffset: e.mem.Offset}
		list := result[e.resource]
		if n := len(list); n > 0 && tryMergeMemoryBind(&list[n-1], bind) {
			result[e.resource] = list
			continue
		}
		result[e.resource] = append(list, bind)
	}
	return result
}

// compareResource orders the opaque resource-handle types used as
// map keys here (gpu.Buffer, gpu.Image) by their underlying handle,
// via the fmt-free %v-less route of comparing their Handle field
// through an interface assertion, since Go generics have no way to
// express "any type with a comparable Handle field".
func compareResource[R comparable](a, b R) bool {
	switch x := any(a).(type) {
	case gpu.Buffer:
		y := any(b).(gpu.Buffer)
		return x.Handle < y.Handle
	case gpu.Image:
		y := any(b).(gpu.Image)
		return x.Handle < y.Handle
	default:
		return false
	}
}

// Reset clears all pending bindings and semaphore waits/signals.
func (s *BindSubmission) Reset() {
	s.waitSemaphores = s.waitSemaphores[:0]
	s.waitSemaphoreValues = s.waitSemaphoreValues[:0]
	s.signalSemaphores = s.signalSemaphores[:0]
	s.signalSemaphoreValues = s.signalSemaphoreValues[:0]
	clear(s.bufferBinds)
	clear(s.imageBinds)
	clear(s.imageOpaqueBinds)
}
