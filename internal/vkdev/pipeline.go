package vkdev

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/dxvkgo/core/internal/gpu"
)

// builtinLayout creates on first use, and then caches, the one
// pipeline layout the meta operations (clears, resolves, mip
// generation) use; spec.md §6 scopes general shader-resource binding
// layouts out of this core, so it is an empty layout with no
// descriptor sets and no push-constant ranges.
func (d *Device) builtinLayout() (C.VkPipelineLayout, error) {
	d.h().mu.Lock()
	defer d.h().mu.Unlock()
	if d.builtinLay != nil {
		return d.builtinLay, nil
	}
	info := C.VkPipelineLayoutCreateInfo{
		sType: C.VK_STRUCTURE_TYPE_PIPELINE_LAYOUT_CREATE_INFO,
	}
	var layout C.VkPipelineLayout
	if err := checkResult(C.vkCreatePipelineLayout(d.dev, &info, nil, &layout)); err != nil {
		return nil, err
	}
	d.builtinLay = layout
	return layout, nil
}

func (d *Device) CreateBuiltinComputePipeline(layout uintptr, stage gpu.ShaderModule) (gpu.Pipeline, error) {
	vklayout, err := d.builtinLayout()
	if err != nil {
		return gpu.Pipeline{}, err
	}
	entry := C.CString("main")
	defer C.free(unsafe.Pointer(entry))

	d.h().mu.Lock()
	mod := d.h().shds[stage.Handle]
	d.h().mu.Unlock()

	info := C.VkComputePipelineCreateInfo{
		sType: C.VK_STRUCTURE_TYPE_COMPUTE_PIPELINE_CREATE_INFO,
		stage: C.VkPipelineShaderStageCreateInfo{
			sType:  C.VK_STRUCTURE_TYPE_PIPELINE_SHADER_STAGE_CREATE_INFO,
			stage:  C.VK_SHADER_STAGE_COMPUTE_BIT,
			module: mod,
			pName:  entry,
		},
		layout: vklayout,
	}
	var pipe C.VkPipeline
	if err := checkResult(C.vkCreateComputePipelines(d.dev, nil, 1, &info, nil, &pipe)); err != nil {
		return gpu.Pipeline{}, err
	}
	handle := d.h().alloc()
	d.h().mu.Lock()
	d.h().pips[handle] = pipe
	d.h().mu.Unlock()
	return gpu.Pipeline{Handle: handle}, nil
}

// CreateBuiltinGraphicsPipeline builds one of the fixed meta-pipelines
// (full-screen clear/resolve/blit) using dynamic rendering rather than
// a VkRenderPass, since spec.md never names render passes as part of
// this core's surface. state is expected to be a *GraphicsPipelineState
// (declared in this file); it is typed any at the gpu.Device boundary because
// the state translation itself belongs to a front end, not this core.
func (d *Device) CreateBuiltinGraphicsPipeline(layout uintptr, state any) (gpu.Pipeline, error) {
	st, _ := state.(*GraphicsPipelineState)
	if st == nil {
		st = &GraphicsPipelineState{ColorFormat: C.VK_FORMAT_R8G8B8A8_UNORM}
	}
	vklayout, err := d.builtinLayout()
	if err != nil {
		return gpu.Pipeline{}, err
	}

	entry := C.CString("main")
	defer C.free(unsafe.Pointer(entry))
	d.h().mu.Lock()
	vert := d.h().shds[st.Vertex.Handle]
	frag := d.h().shds[st.Fragment.Handle]
	d.h().mu.Unlock()

	stages := []C.VkPipelineShaderStageCreateInfo{
		{sType: C.VK_STRUCTURE_TYPE_PIPELINE_SHADER_STAGE_CREATE_INFO, stage: C.VK_SHADER_STAGE_VERTEX_BIT, module: vert, pName: entry},
		{sType: C.VK_STRUCTURE_TYPE_PIPELINE_SHADER_STAGE_CREATE_INFO, stage: C.VK_SHADER_STAGE_FRAGMENT_BIT, module: frag, pName: entry},
	}

	vertInput := C.VkPipelineVertexInputStateCreateInfo{sType: C.VK_STRUCTURE_TYPE_PIPELINE_VERTEX_INPUT_STATE_CREATE_INFO}
	inputAsm := C.VkPipelineInputAssemblyStateCreateInfo{
		sType:    C.VK_STRUCTURE_TYPE_PIPELINE_INPUT_ASSEMBLY_STATE_CREATE_INFO,
		topology: C.VK_PRIMITIVE_TOPOLOGY_TRIANGLE_LIST,
	}
	viewportState := C.VkPipelineViewportStateCreateInfo{
		sType:         C.VK_STRUCTURE_TYPE_PIPELINE_VIEWPORT_STATE_CREATE_INFO,
		viewportCount: 1,
		scissorCount:  1,
	}
	raster := C.VkPipelineRasterizationStateCreateInfo{
		sType:     C.VK_STRUCTURE_TYPE_PIPELINE_RASTERIZATION_STATE_CREATE_INFO,
		lineWidth: 1,
		cullMode:  C.VK_CULL_MODE_NONE,
	}
	multisample := C.VkPipelineMultisampleStateCreateInfo{
		sType:                C.VK_STRUCTURE_TYPE_PIPELINE_MULTISAMPLE_STATE_CREATE_INFO,
		rasterizationSamples: C.VK_SAMPLE_COUNT_1_BIT,
	}
	colorBlendAttach := C.VkPipelineColorBlendAttachmentState{
		colorWriteMask: C.VK_COLOR_COMPONENT_R_BIT | C.VK_COLOR_COMPONENT_G_BIT | C.VK_COLOR_COMPONENT_B_BIT | C.VK_COLOR_COMPONENT_A_BIT,
	}
	colorBlend := C.VkPipelineColorBlendStateCreateInfo{
		sType:           C.VK_STRUCTURE_TYPE_PIPELINE_COLOR_BLEND_STATE_CREATE_INFO,
		attachmentCount: 1,
		pAttachments:    &colorBlendAttach,
	}
	dynStates := []C.VkDynamicState{C.VK_DYNAMIC_STATE_VIEWPORT, C.VK_DYNAMIC_STATE_SCISSOR}
	dynState := C.VkPipelineDynamicStateCreateInfo{
		sType:             C.VK_STRUCTURE_TYPE_PIPELINE_DYNAMIC_STATE_CREATE_INFO,
		dynamicStateCount: C.uint32_t(len(dynStates)),
		pDynamicStates:    &dynStates[0],
	}
	colorFormat := st.ColorFormat
	renderingInfo := C.VkPipelineRenderingCreateInfo{
		sType:                 C.VK_STRUCTURE_TYPE_PIPELINE_RENDERING_CREATE_INFO,
		colorAttachmentCount:  1,
		pColorAttachmentFormats: &colorFormat,
	}

	info := C.VkGraphicsPipelineCreateInfo{
		sType:               C.VK_STRUCTURE_TYPE_GRAPHICS_PIPELINE_CREATE_INFO,
		pNext:               unsafe.Pointer(&renderingInfo),
		stageCount:          C.uint32_t(len(stages)),
		pStages:             &stages[0],
		pVertexInputState:   &vertInput,
		pInputAssemblyState: &inputAsm,
		pViewportState:      &viewportState,
		pRasterizationState: &raster,
		pMultisampleState:   &multisample,
		pColorBlendState:    &colorBlend,
		pDynamicState:       &dynState,
		layout:              vklayout,
	}
	var pipe C.VkPipeline
	if err := checkResult(C.vkCreateGraphicsPipelines(d.dev, nil, 1, &info, nil, &pipe)); err != nil {
		return gpu.Pipeline{}, err
	}
	handle := d.h().alloc()
	d.h().mu.Lock()
	d.h().pips[handle] = pipe
	d.h().mu.Unlock()
	return gpu.Pipeline{Handle: handle}, nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	d.h().mu.Lock()
	pipe, ok := d.h().pips[p.Handle]
	delete(d.h().pips, p.Handle)
	d.h().mu.Unlock()
	if ok {
		C.vkDestroyPipeline(d.dev, pipe, nil)
	}
}

// GraphicsPipelineState is the minimal state a builtin graphics
// meta-pipeline needs: a vertex/fragment stage pair and the single
// color attachment format dynamic rendering requires up front.
type GraphicsPipelineState struct {
	Vertex, Fragment gpu.ShaderModule
	ColorFormat      C.VkFormat
}
