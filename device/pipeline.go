package device

import (
	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/shadercache"
)

// CreateBuiltinComputePipeline implements spec.md §6's
// create_builtin_compute_pipeline(layout, stage), used internally for
// meta-operations (clears, resolves, mip generation).
func (d *Device) CreateBuiltinComputePipeline(layout uintptr, stage gpu.ShaderModule) (gpu.Pipeline, error) {
	p, err := d.dev.CreateBuiltinComputePipeline(layout, stage)
	if err != nil {
		return gpu.Pipeline{}, wrap(KindShaderCompile, err, "device: create builtin compute pipeline")
	}
	return p, nil
}

// CreateBuiltinGraphicsPipeline implements spec.md §6's
// create_builtin_graphics_pipeline(layout, state).
func (d *Device) CreateBuiltinGraphicsPipeline(layout uintptr, state any) (gpu.Pipeline, error) {
	p, err := d.dev.CreateBuiltinGraphicsPipeline(layout, state)
	if err != nil {
		return gpu.Pipeline{}, wrap(KindShaderCompile, err, "device: create builtin graphics pipeline")
	}
	return p, nil
}

// DestroyPipeline releases a builtin pipeline handle.
func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	d.dev.DestroyPipeline(p)
}

// CreateShaderModule turns final SPIR-V (typically shadercache output)
// into a driver shader module.
func (d *Device) CreateShaderModule(spirv []byte) (gpu.ShaderModule, error) {
	m, err := d.dev.CreateShaderModule(spirv)
	if err != nil {
		return gpu.ShaderModule{}, wrap(KindShaderCompile, err, "device: create shader module")
	}
	return m, nil
}

// DestroyShaderModule releases a shader module handle.
func (d *Device) DestroyShaderModule(m gpu.ShaderModule) {
	d.dev.DestroyShaderModule(m)
}

// ShaderCache returns the optional on-disk shader cache, or nil if it
// was disabled or failed to open (spec.md §6: "subsequent failure
// disables the cache transparently").
func (d *Device) ShaderCache() *shadercache.Cache {
	return d.cache
}

// LookupShader implements the shader cache's lookup(name, create_info).
// It reports (nil, false) whenever the cache is disabled, closed or
// simply has no entry for name.
func (d *Device) LookupShader(name string, info shadercache.CreateInfo) (*shadercache.Shader, bool) {
	if d.cache == nil {
		return nil, false
	}
	s := d.cache.Lookup(name, info)
	return s, s != nil
}

// AddShader implements the shader cache's add(shader): a no-op if the
// cache is disabled, otherwise queued on the background writer thread.
func (d *Device) AddShader(s *shadercache.Shader) {
	if d.cache != nil {
		d.cache.Add(s)
	}
}
