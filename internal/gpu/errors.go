package gpu

import "errors"

// Sentinel errors a Device implementation returns so that callers
// (memalloc's dedicated-allocation fallback, fence/submit's wait
// paths) can distinguish recoverable conditions from driver failures
// without depending on internal/vkdev.
var (
	// ErrOutOfMemory is returned by AllocateMemory when a heap has
	// insufficient budget left, mirroring VK_ERROR_OUT_OF_DEVICE_MEMORY.
	ErrOutOfMemory = errors.New("gpu: out of device memory")

	// ErrInvalidHandle is returned when an opaque handle passed back
	// into the Device no longer refers to a live object.
	ErrInvalidHandle = errors.New("gpu: invalid handle")

	// ErrTimeout is returned by submission paths that wait on a
	// semaphore reaching a value within a bounded deadline.
	ErrTimeout = errors.New("gpu: wait timed out")
)
