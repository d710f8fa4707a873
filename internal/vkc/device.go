package vkc

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>
*/
import "C"
import "unsafe"

type Device struct{ handle C.VkDevice }
type Queue struct{ handle C.VkQueue }

// FindGraphicsQueueFamily returns the index of the first queue family
// advertising VK_QUEUE_GRAPHICS_BIT, the same policy vulkango leaves to
// application code via GetQueueFamilyProperties.
func (p PhysicalDevice) FindGraphicsQueueFamily() (uint32, bool) {
	var count C.uint32_t
	C.vkGetPhysicalDeviceQueueFamilyProperties(p.handle, &count, nil)
	if count == 0 {
		return 0, false
	}
	props := make([]C.VkQueueFamilyProperties, count)
	C.vkGetPhysicalDeviceQueueFamilyProperties(p.handle, &count, &props[0])

	for i := uint32(0); i < uint32(count); i++ {
		if props[i].queueFlags&C.VK_QUEUE_GRAPHICS_BIT != 0 {
			return i, true
		}
	}
	return 0, false
}

// CreateDevice opens a logical device with a single queue on
// queueFamily, requesting extensions (typically
// VK_KHR_external_memory_fd for DMA-BUF import).
func (p PhysicalDevice) CreateDevice(queueFamily uint32, extensions []string) (Device, error) {
	priority := C.float(1.0)

	var queueInfo C.VkDeviceQueueCreateInfo
	queueInfo.sType = C.VK_STRUCTURE_TYPE_DEVICE_QUEUE_CREATE_INFO
	queueInfo.queueFamilyIndex = C.uint32_t(queueFamily)
	queueInfo.queueCount = 1
	queueInfo.pQueuePriorities = &priority

	var cInfo C.VkDeviceCreateInfo
	cInfo.sType = C.VK_STRUCTURE_TYPE_DEVICE_CREATE_INFO
	cInfo.queueCreateInfoCount = 1
	cInfo.pQueueCreateInfos = &queueInfo

	var cExts []*C.char
	if len(extensions) > 0 {
		cExts = make([]*C.char, len(extensions))
		for i, e := range extensions {
			cExts[i] = C.CString(e)
		}
		defer func() {
			for _, e := range cExts {
				C.free(unsafe.Pointer(e))
			}
		}()
		cInfo.enabledExtensionCount = C.uint32_t(len(cExts))
		cInfo.ppEnabledExtensionNames = &cExts[0]
	}

	var device C.VkDevice
	result := C.vkCreateDevice(p.handle, &cInfo, nil, &device)
	if result != C.VK_SUCCESS {
		return Device{}, Result(result)
	}
	return Device{handle: device}, nil
}

func (d Device) Destroy() { C.vkDestroyDevice(d.handle, nil) }

func (d Device) WaitIdle() error {
	if result := C.vkDeviceWaitIdle(d.handle); result != C.VK_SUCCESS {
		return Result(result)
	}
	return nil
}

func (d Device) GetQueue(family, index uint32) Queue {
	var queue C.VkQueue
	C.vkGetDeviceQueue(d.handle, C.uint32_t(family), C.uint32_t(index), &queue)
	return Queue{handle: queue}
}

func (q Queue) WaitIdle() error {
	if result := C.vkQueueWaitIdle(q.handle); result != C.VK_SUCCESS {
		return Result(result)
	}
	return nil
}
