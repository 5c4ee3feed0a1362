package vkdev

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/dxvkgo/core/internal/gpu"
)

func (d *Device) CreateShaderModule(spirv []byte) (gpu.ShaderModule, error) {
	n := len(spirv)
	if n == 0 || n&3 != 0 {
		return gpu.ShaderModule{}, errors.New("vkdev: shader code size must be a non-zero multiple of four")
	}
	p := C.malloc(C.size_t(n))
	defer C.free(p)
	copy(unsafe.Slice((*byte)(p), n), spirv)

	info := C.VkShaderModuleCreateInfo{
		sType:    C.VK_STRUCTURE_TYPE_SHADER_MODULE_CREATE_INFO,
		codeSize: C.size_t(n),
		pCode:    (*C.uint32_t)(p),
	}
	var mod C.VkShaderModule
	if err := checkResult(C.vkCreateShaderModule(d.dev, &info, nil, &mod)); err != nil {
		return gpu.ShaderModule{}, errors.Wrap(err, "vkdev: create shader module")
	}
	handle := d.h().alloc()
	d.h().mu.Lock()
	d.h().shds[handle] = mod
	d.h().mu.Unlock()
	return gpu.ShaderModule{Handle: handle}, nil
}

func (d *Device) DestroyShaderModule(m gpu.ShaderModule) {
	d.h().mu.Lock()
	mod, ok := d.h().shds[m.Handle]
	delete(d.h().shds, m.Handle)
	d.h().mu.Unlock()
	if ok {
		C.vkDestroyShaderModule(d.dev, mod, nil)
	}
}
