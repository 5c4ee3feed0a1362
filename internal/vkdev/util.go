package vkdev

/*
#include <vulkan/vulkan.h>
*/
import "C"
import "unsafe"

// unsafePointerOf exists so call sites building pNext chains read as
// plain struct literals instead of inline unsafe.Pointer casts.
func unsafePointerOf[T any](v *T) unsafe.Pointer { return unsafe.Pointer(v) }
