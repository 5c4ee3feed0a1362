package vkdev

/*
#include <vulkan/vulkan.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/dxvkgo/core/internal/gpu"
)

func (d *Device) queue(index int) (C.VkQueue, *sync.Mutex) {
	return d.queues[index], &d.queueMus[index]
}

func waitSignalTimeline(h *handles, waits []gpu.SubmitWait, signals []gpu.SubmitSignal) (
	waitSems []C.VkSemaphore, waitValues []C.uint64_t, waitStages []C.VkPipelineStageFlags2,
	sigSems []C.VkSemaphore, sigValues []C.uint64_t,
) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range waits {
		waitSems = append(waitSems, h.sems[w.Semaphore.Handle])
		waitValues = append(waitValues, C.uint64_t(w.Value))
		waitStages = append(waitStages, C.VkPipelineStageFlags2(w.Stage))
	}
	for _, s := range signals {
		sigSems = append(sigSems, h.sems[s.Semaphore.Handle])
		sigValues = append(sigValues, C.uint64_t(s.Value))
	}
	return
}

func (d *Device) QueueSubmit(queueIndex int, batch gpu.SubmitBatch) error {
	q, mu := d.queue(queueIndex)
	mu.Lock()
	defer mu.Unlock()

	waitSems, waitValues, waitStages, sigSems, sigValues := waitSignalTimeline(d.h(), batch.Waits, batch.Signals)

	cmdInfos := make([]C.VkCommandBufferSubmitInfo, len(batch.CommandLists))
	d.h().mu.Lock()
	for i, cl := range batch.CommandLists {
		cmdInfos[i] = C.VkCommandBufferSubmitInfo{
			sType:         C.VK_STRUCTURE_TYPE_COMMAND_BUFFER_SUBMIT_INFO,
			commandBuffer: d.h().cmds[cl.Handle],
		}
	}
	d.h().mu.Unlock()

	waitInfos := make([]C.VkSemaphoreSubmitInfo, len(waitSems))
	for i := range waitSems {
		waitInfos[i] = C.VkSemaphoreSubmitInfo{
			sType:     C.VK_STRUCTURE_TYPE_SEMAPHORE_SUBMIT_INFO,
			semaphore: waitSems[i],
			value:     waitValues[i],
			stageMask: waitStages[i],
		}
	}
	sigInfos := make([]C.VkSemaphoreSubmitInfo, len(sigSems))
	for i := range sigSems {
		sigInfos[i] = C.VkSemaphoreSubmitInfo{
			sType:     C.VK_STRUCTURE_TYPE_SEMAPHORE_SUBMIT_INFO,
			semaphore: sigSems[i],
			value:     sigValues[i],
		}
	}

	info := C.VkSubmitInfo2{sType: C.VK_STRUCTURE_TYPE_SUBMIT_INFO_2}
	if len(cmdInfos) > 0 {
		info.commandBufferInfoCount = C.uint32_t(len(cmdInfos))
		info.pCommandBufferInfos = &cmdInfos[0]
	}
	if len(waitInfos) > 0 {
		info.waitSemaphoreInfoCount = C.uint32_t(len(waitInfos))
		info.pWaitSemaphoreInfos = &waitInfos[0]
	}
	if len(sigInfos) > 0 {
		info.signalSemaphoreInfoCount = C.uint32_t(len(sigInfos))
		info.pSignalSemaphoreInfos = &sigInfos[0]
	}

	return checkResult(C.vkQueueSubmit2(q, 1, &info, nil))
}

func (d *Device) QueuePresent(queueIndex int, info gpu.PresentInfo) (bool, error) {
	q, mu := d.queue(queueIndex)
	mu.Lock()
	defer mu.Unlock()

	// Present only accepts binary semaphores; the frame pacer
	// (package submit) is expected to hand a binary-semaphore
	// rendezvous here rather than the timeline semaphore directly
	// (spec.md §4.6 presentation handoff).
	waitSems := make([]C.VkSemaphore, 0, len(info.Waits))
	d.h().mu.Lock()
	for _, w := range info.Waits {
		waitSems = append(waitSems, d.h().sems[w.Semaphore.Handle])
	}
	d.h().mu.Unlock()

	swapchain := C.VkSwapchainKHR(unsafe.Pointer(info.SwapchainID))
	imageIndex := C.uint32_t(info.ImageIndex)

	cinfo := C.VkPresentInfoKHR{
		sType:          C.VK_STRUCTURE_TYPE_PRESENT_INFO_KHR,
		swapchainCount: 1,
		pSwapchains:    &swapchain,
		pImageIndices:  &imageIndex,
	}
	if len(waitSems) > 0 {
		cinfo.waitSemaphoreCount = C.uint32_t(len(waitSems))
		cinfo.pWaitSemaphores = &waitSems[0]
	}
	res := C.vkQueuePresentKHR(q, &cinfo)
	if res == C.VK_SUBOPTIMAL_KHR {
		return true, nil
	}
	return false, checkResult(res)
}

func (d *Device) QueueWaitIdle(queueIndex int) error {
	q, mu := d.queue(queueIndex)
	mu.Lock()
	defer mu.Unlock()
	return checkResult(C.vkQueueWaitIdle(q))
}

func (d *Device) DeviceWaitIdle() error {
	return checkResult(C.vkDeviceWaitIdle(d.dev))
}
