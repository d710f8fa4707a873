package vkc

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>
*/
import "C"
import "unsafe"

type Image struct{ handle C.VkImage }
type DeviceMemory struct{ handle C.VkDeviceMemory }

type ImageCreateInfo struct {
	Extent      Extent2D
	Format      Format
	Usage       ImageUsageFlags
	SharingMode SharingMode
	// External marks the image as backed by memory imported from
	// outside Vulkan (a wsialloc DMA-BUF fd), the same shape
	// VK_EXT_external_memory_dma_buf images require at creation time.
	External bool
}

func (d Device) CreateImage(info ImageCreateInfo) (Image, error) {
	var cInfo C.VkImageCreateInfo
	cInfo.sType = C.VK_STRUCTURE_TYPE_IMAGE_CREATE_INFO
	cInfo.imageType = C.VK_IMAGE_TYPE_2D
	cInfo.format = C.VkFormat(info.Format)
	cInfo.extent.width = C.uint32_t(info.Extent.Width)
	cInfo.extent.height = C.uint32_t(info.Extent.Height)
	cInfo.extent.depth = 1
	cInfo.mipLevels = 1
	cInfo.arrayLayers = 1
	cInfo.samples = C.VK_SAMPLE_COUNT_1_BIT
	cInfo.tiling = C.VK_IMAGE_TILING_LINEAR
	cInfo.usage = C.VkImageUsageFlags(info.Usage)
	cInfo.sharingMode = C.VkSharingMode(info.SharingMode)
	cInfo.initialLayout = C.VK_IMAGE_LAYOUT_UNDEFINED

	var extInfo C.VkExternalMemoryImageCreateInfo
	if info.External {
		extInfo.sType = C.VK_STRUCTURE_TYPE_EXTERNAL_MEMORY_IMAGE_CREATE_INFO
		extInfo.handleTypes = C.VK_EXTERNAL_MEMORY_HANDLE_TYPE_DMA_BUF_BIT_EXT
		cInfo.pNext = unsafe.Pointer(&extInfo)
	}

	var image C.VkImage
	result := C.vkCreateImage(d.handle, &cInfo, nil, &image)
	if result != C.VK_SUCCESS {
		return Image{}, Result(result)
	}
	return Image{handle: image}, nil
}

func (d Device) DestroyImage(img Image) { C.vkDestroyImage(d.handle, img.handle, nil) }

func (d Device) GetImageMemoryRequirements(img Image) (size uint64, typeBits uint32) {
	var req C.VkMemoryRequirements
	C.vkGetImageMemoryRequirements(d.handle, img.handle, &req)
	return uint64(req.size), uint32(req.memoryTypeBits)
}

// ImportDmaBufMemory allocates device memory backed by an
// already-open DMA-BUF file descriptor (produced by wsialloc.Alloc)
// and binds it to img. Ownership of fd passes to Vulkan on success,
// matching VK_EXT_external_memory_dma_buf's semantics: the driver
// takes over the descriptor's lifetime once import succeeds.
func (d Device) ImportDmaBufMemory(p PhysicalDevice, img Image, fd int, size uint64) (DeviceMemory, error) {
	_, typeBits := d.GetImageMemoryRequirements(img)
	memTypeIndex, found := FindMemoryType(p.GetMemoryProperties(), typeBits, uint32(C.VK_MEMORY_PROPERTY_DEVICE_LOCAL_BIT))
	if !found {
		return DeviceMemory{}, ErrorInitFailed
	}

	var importInfo C.VkImportMemoryFdInfoKHR
	importInfo.sType = C.VK_STRUCTURE_TYPE_IMPORT_MEMORY_FD_INFO_KHR
	importInfo.handleType = C.VK_EXTERNAL_MEMORY_HANDLE_TYPE_DMA_BUF_BIT_EXT
	importInfo.fd = C.int(fd)

	var dedicated C.VkMemoryDedicatedAllocateInfo
	dedicated.sType = C.VK_STRUCTURE_TYPE_MEMORY_DEDICATED_ALLOCATE_INFO
	dedicated.image = img.handle
	importInfo.pNext = unsafe.Pointer(&dedicated)

	var allocInfo C.VkMemoryAllocateInfo
	allocInfo.sType = C.VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_INFO
	allocInfo.pNext = unsafe.Pointer(&importInfo)
	allocInfo.allocationSize = C.VkDeviceSize(size)
	allocInfo.memoryTypeIndex = C.uint32_t(memTypeIndex)

	var mem C.VkDeviceMemory
	result := C.vkAllocateMemory(d.handle, &allocInfo, nil, &mem)
	if result != C.VK_SUCCESS {
		return DeviceMemory{}, Result(result)
	}

	if bindResult := C.vkBindImageMemory(d.handle, img.handle, mem, 0); bindResult != C.VK_SUCCESS {
		C.vkFreeMemory(d.handle, mem, nil)
		return DeviceMemory{}, Result(bindResult)
	}
	return DeviceMemory{handle: mem}, nil
}

func (d Device) FreeMemory(mem DeviceMemory) { C.vkFreeMemory(d.handle, mem.handle, nil) }
