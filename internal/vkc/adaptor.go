package vkc

import (
	"time"

	"github.com/NOT-REAL-GAMES/wsiswap/swapchain"
)

// Adaptor implements swapchain.DeviceAdaptor over a real VkDevice,
// letting vkpresent drive the swapchain engine against actual
// hardware fences and queues instead of the headless package's
// software stand-ins.
type Adaptor struct {
	Physical PhysicalDevice
	Logical  Device
	Family   uint32
}

func (a *Adaptor) WaitForFences(fences []swapchain.Fence, waitAll bool, timeout time.Duration) error {
	cFences := make([]Fence, len(fences))
	for i, f := range fences {
		cFences[i] = f.(Fence)
	}
	nanos := uint64(0xFFFFFFFFFFFFFFFF)
	if timeout >= 0 {
		nanos = uint64(timeout.Nanoseconds())
	}
	return a.Logical.WaitForFences(cFences, waitAll, nanos)
}

func (a *Adaptor) ResetFences(fences []swapchain.Fence) error {
	cFences := make([]Fence, len(fences))
	for i, f := range fences {
		cFences[i] = f.(Fence)
	}
	return a.Logical.ResetFences(cFences)
}

func (a *Adaptor) QueueSubmit(q swapchain.Queue, submit swapchain.SubmitInfo, signal swapchain.Fence) error {
	waitSems := make([]Semaphore, len(submit.WaitSemaphores))
	for i, s := range submit.WaitSemaphores {
		waitSems[i] = s.(Semaphore)
	}
	signalSems := make([]Semaphore, len(submit.SignalSemaphores))
	for i, s := range submit.SignalSemaphores {
		signalSems[i] = s.(Semaphore)
	}
	var fence Fence
	if signal != nil {
		fence = signal.(Fence)
	}
	return q.(Queue).Submit(SubmitInfo{WaitSemaphores: waitSems, SignalSemaphores: signalSems}, fence)
}

func (a *Adaptor) QueueWaitIdle(q swapchain.Queue) error {
	return q.(Queue).WaitIdle()
}

func (a *Adaptor) GetDeviceQueue(family, index uint32) swapchain.Queue {
	return a.Logical.GetQueue(family, index)
}

func (a *Adaptor) TagDeviceLoaderData(q swapchain.Queue) error {
	// Go has no loader dispatch table to poke into; the ICD loader
	// concept this method mirrors does not exist at this layer.
	return nil
}

func (a *Adaptor) AllocateImageArray(n int) []swapchain.SwapchainImage {
	return make([]swapchain.SwapchainImage, n)
}
