// Package vkc is a trimmed cgo binding to the Vulkan C API, covering
// exactly the instance/device/queue/fence/semaphore/image primitives a
// swapchain.DeviceAdaptor and a swapchain.Presenter need to drive real
// hardware. It follows vulkango's binding style (opaque handle structs,
// C create-info structs filled in Go, C strings freed with defer, Result
// as the error type) rather than reinventing one.
package vkc

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>
*/
import "C"

// Result is the raw VkResult code, mirroring vulkango.Result.
type Result int32

const (
	Success                Result = C.VK_SUCCESS
	NotReady               Result = C.VK_NOT_READY
	Timeout                Result = C.VK_TIMEOUT
	ErrorOutOfHostMemory   Result = C.VK_ERROR_OUT_OF_HOST_MEMORY
	ErrorOutOfDeviceMemory Result = C.VK_ERROR_OUT_OF_DEVICE_MEMORY
	ErrorDeviceLost        Result = C.VK_ERROR_DEVICE_LOST
	ErrorInitFailed        Result = C.VK_ERROR_INITIALIZATION_FAILED
)

func (r Result) Error() string {
	switch r {
	case Success:
		return "VK_SUCCESS"
	case NotReady:
		return "VK_NOT_READY"
	case Timeout:
		return "VK_TIMEOUT"
	case ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case ErrorInitFailed:
		return "VK_ERROR_INITIALIZATION_FAILED"
	default:
		return "VK_ERROR_UNKNOWN"
	}
}

type Extent2D struct{ Width, Height uint32 }
type Extent3D struct{ Width, Height, Depth uint32 }

type Format int32

// A handful of formats that vkpresent maps the format table's fourccs to.
const (
	FormatB8G8R8A8Unorm Format = C.VK_FORMAT_B8G8R8A8_UNORM
	FormatR8G8B8A8Unorm Format = C.VK_FORMAT_R8G8B8A8_UNORM
	FormatR5G6B5Unorm   Format = C.VK_FORMAT_R5G6B5_UNORM_PACK16
)

type ImageUsageFlags uint32

const (
	ImageUsageColorAttachment ImageUsageFlags = C.VK_IMAGE_USAGE_COLOR_ATTACHMENT_BIT
	ImageUsageTransferDst     ImageUsageFlags = C.VK_IMAGE_USAGE_TRANSFER_DST_BIT
	ImageUsageTransferSrc     ImageUsageFlags = C.VK_IMAGE_USAGE_TRANSFER_SRC_BIT
	ImageUsageSampled         ImageUsageFlags = C.VK_IMAGE_USAGE_SAMPLED_BIT
)

type SharingMode int32

const (
	SharingModeExclusive  SharingMode = C.VK_SHARING_MODE_EXCLUSIVE
	SharingModeConcurrent SharingMode = C.VK_SHARING_MODE_CONCURRENT
)
