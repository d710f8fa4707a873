package vkc

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>
*/
import "C"

type Fence struct{ handle C.VkFence }
type Semaphore struct{ handle C.VkSemaphore }

func (d Device) CreateFence(signaled bool) (Fence, error) {
	var cInfo C.VkFenceCreateInfo
	cInfo.sType = C.VK_STRUCTURE_TYPE_FENCE_CREATE_INFO
	if signaled {
		cInfo.flags = C.VK_FENCE_CREATE_SIGNALED_BIT
	}

	var fence C.VkFence
	result := C.vkCreateFence(d.handle, &cInfo, nil, &fence)
	if result != C.VK_SUCCESS {
		return Fence{}, Result(result)
	}
	return Fence{handle: fence}, nil
}

func (d Device) DestroyFence(f Fence) { C.vkDestroyFence(d.handle, f.handle, nil) }

func (d Device) CreateSemaphore() (Semaphore, error) {
	var cInfo C.VkSemaphoreCreateInfo
	cInfo.sType = C.VK_STRUCTURE_TYPE_SEMAPHORE_CREATE_INFO

	var sem C.VkSemaphore
	result := C.vkCreateSemaphore(d.handle, &cInfo, nil, &sem)
	if result != C.VK_SUCCESS {
		return Semaphore{}, Result(result)
	}
	return Semaphore{handle: sem}, nil
}

func (d Device) DestroySemaphore(s Semaphore) { C.vkDestroySemaphore(d.handle, s.handle, nil) }

// WaitForFences blocks (or, if timeoutNanos == 0, polls) until every
// fence in fences is signaled (waitAll true) or any one of them is
// (waitAll false).
func (d Device) WaitForFences(fences []Fence, waitAll bool, timeoutNanos uint64) error {
	if len(fences) == 0 {
		return nil
	}
	cFences := make([]C.VkFence, len(fences))
	for i, f := range fences {
		cFences[i] = f.handle
	}

	var cWaitAll C.VkBool32
	if waitAll {
		cWaitAll = C.VK_TRUE
	}

	result := C.vkWaitForFences(d.handle, C.uint32_t(len(cFences)), &cFences[0], cWaitAll, C.uint64_t(timeoutNanos))
	if result != C.VK_SUCCESS && result != C.VK_TIMEOUT {
		return Result(result)
	}
	if result == C.VK_TIMEOUT {
		return Timeout
	}
	return nil
}

func (d Device) ResetFences(fences []Fence) error {
	if len(fences) == 0 {
		return nil
	}
	cFences := make([]C.VkFence, len(fences))
	for i, f := range fences {
		cFences[i] = f.handle
	}
	if result := C.vkResetFences(d.handle, C.uint32_t(len(cFences)), &cFences[0]); result != C.VK_SUCCESS {
		return Result(result)
	}
	return nil
}

// SubmitInfo is the no-command-buffer submit shape the swapchain
// engine needs: a wait-semaphores batch for queue_present's
// fence-only completion signal, and a signal-semaphores batch for
// acquire_next_image's post-acquire signal.
type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	SignalSemaphores []Semaphore
}

func (q Queue) Submit(submit SubmitInfo, fence Fence) error {
	var cInfo C.VkSubmitInfo
	cInfo.sType = C.VK_STRUCTURE_TYPE_SUBMIT_INFO

	var waitSems []C.VkSemaphore
	var waitStages []C.VkPipelineStageFlags
	if len(submit.WaitSemaphores) > 0 {
		waitSems = make([]C.VkSemaphore, len(submit.WaitSemaphores))
		waitStages = make([]C.VkPipelineStageFlags, len(submit.WaitSemaphores))
		for i, s := range submit.WaitSemaphores {
			waitSems[i] = s.handle
			waitStages[i] = C.VK_PIPELINE_STAGE_BOTTOM_OF_PIPE_BIT
		}
		cInfo.waitSemaphoreCount = C.uint32_t(len(waitSems))
		cInfo.pWaitSemaphores = &waitSems[0]
		cInfo.pWaitDstStageMask = &waitStages[0]
	}

	var signalSems []C.VkSemaphore
	if len(submit.SignalSemaphores) > 0 {
		signalSems = make([]C.VkSemaphore, len(submit.SignalSemaphores))
		for i, s := range submit.SignalSemaphores {
			signalSems[i] = s.handle
		}
		cInfo.signalSemaphoreCount = C.uint32_t(len(signalSems))
		cInfo.pSignalSemaphores = &signalSems[0]
	}

	result := C.vkQueueSubmit(q.handle, 1, &cInfo, fence.handle)
	if result != C.VK_SUCCESS {
		return Result(result)
	}
	return nil
}
