// Package swapchain implements the swapchain image-lifecycle engine: the
// image state machine, the acquire/present/page-flip pipeline, the
// ancestor/descendant handoff protocol used when a swapchain is
// recreated, and the teardown ordering needed to avoid destroying
// resources the display is still reading.
//
// The engine is agnostic to the graphics API and the platform
// presentation back-end: it consumes them through the DeviceAdaptor and
// Presenter interfaces below, the same seam vulkango's own
// swapchain_helper.go leaves to the caller (there, a thin convenience
// layer over the real vkCreateSwapchainKHR; here, the swapchain itself).
package swapchain

import "time"

// ImageState is one of the five states a swapchain image can be in.
type ImageState int

const (
	Invalid ImageState = iota
	Free
	Acquired
	Pending
	Presented
)

func (s ImageState) String() string {
	switch s {
	case Invalid:
		return "INVALID"
	case Free:
		return "FREE"
	case Acquired:
		return "ACQUIRED"
	case Pending:
		return "PENDING"
	case Presented:
		return "PRESENTED"
	default:
		return "UNKNOWN"
	}
}

// Opaque handle types. The engine never inspects their contents; it
// only carries them between the caller and the DeviceAdaptor/Presenter.
type (
	Image     any
	Fence     any
	Semaphore any
	Queue     any
)

// SwapchainImage is one slot in the swapchain's image pool.
type SwapchainImage struct {
	Image  Image
	Fence  Fence
	Status ImageState
	// Data is platform-private state a Presenter implementation may
	// stash here; the engine never reads it.
	Data any
}

// PresentMode restricts CreateInfo.PresentMode to the two modes §4.E.1
// accepts.
type PresentMode int

const (
	PresentModeFIFO PresentMode = iota
	PresentModeFIFORelaxed
)

// ImageUsage/SharingMode are forwarded verbatim to the image-create
// descriptor; the engine does not interpret them.
type ImageUsage uint32
type SharingMode int32

// Extent2D mirrors vulkango's Extent2D.
type Extent2D struct {
	Width, Height uint32
}

// CreateInfo is the swapchain creation request, matching
// SwapchainCreateInfoKHR's fields that this engine actually consumes.
type CreateInfo struct {
	MinImageCount      uint32
	ImageFormat        uint32
	ImageExtent        Extent2D
	ImageUsage         ImageUsage
	ImageSharingMode   SharingMode
	QueueFamilyIndices []uint32
	PresentMode        PresentMode
	OldSwapchain       *Swapchain
}

// ImageDescriptor is the image-create descriptor built from CreateInfo
// in step 7 of §4.E.1, passed to Presenter.CreateImage.
type ImageDescriptor struct {
	Width              uint32
	Height             uint32
	MipLevels          uint32
	ArrayLayers        uint32
	Format             uint32
	Usage              ImageUsage
	SharingMode        SharingMode
	QueueFamilyIndices []uint32
}

// SubmitInfo is the queue-submit shape the engine needs: a wait list
// for QueuePresent's fence-only completion signal, and a signal list
// for AcquireNextImage's post-acquire signal-only submit. Command
// buffers are never used by the engine itself; it only ever submits
// wait-only or signal-only batches.
type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	SignalSemaphores []Semaphore
}

// PresentInfo is the input to QueuePresent.
type PresentInfo struct {
	WaitSemaphores []Semaphore
}

// DeviceAdaptor is the abstract graphics-API device the engine drives.
// It exposes exactly the primitives §1 says the core consumes: fence
// wait/reset, queue submit, queue-wait-idle, device-loader tagging, and
// image object allocation.
type DeviceAdaptor interface {
	// WaitForFences blocks until either all given fences (waitAll
	// true) or any one of them (waitAll false) is signaled, or timeout
	// elapses. A negative timeout blocks indefinitely, matching the
	// worker's UINT64_MAX wait.
	WaitForFences(fences []Fence, waitAll bool, timeout time.Duration) error
	ResetFences(fences []Fence) error
	// QueueSubmit submits a wait-only or signal-only batch (the engine
	// never submits real command buffers) that completes by signaling
	// signal, if non-nil.
	QueueSubmit(q Queue, submit SubmitInfo, signal Fence) error
	QueueWaitIdle(q Queue) error
	GetDeviceQueue(family, index uint32) Queue
	// TagDeviceLoaderData associates q with the device's loader dispatch
	// table, the Go stand-in for SetDeviceLoaderData.
	TagDeviceLoaderData(q Queue) error
	// AllocateImageArray reserves n empty SwapchainImage slots, standing
	// in for the host allocator callback path in §4.E.1 step 3.
	AllocateImageArray(n int) []SwapchainImage
}

// Presenter is the abstract platform presentation back-end (direct-to
// -display, headless, compositor surface). PresentImage blocks the
// page-flip worker until it returns; back-ends that track which image
// they last displayed call back into UnpresentImage themselves once a
// new image supersedes it, the way headless.Presenter and
// vkpresent.Presenter both do.
type Presenter interface {
	InitPlatform(dev DeviceAdaptor, info CreateInfo) error
	CreateImage(desc ImageDescriptor, slot *SwapchainImage) error
	DestroyImage(slot *SwapchainImage)
	PresentImage(index uint32) error
}

// FreeBufferGetter is implemented by presenters that can proactively
// free buffers to shorten an AcquireNextImage wait (§4.E.2 step 1). Not
// every Presenter needs it, so it is a separate, optionally-satisfied
// interface rather than a method every implementation must stub out.
type FreeBufferGetter interface {
	GetFreeBuffer(timeout *time.Duration) error
}
