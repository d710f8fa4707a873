package vkc

// #cgo linux LDFLAGS: -L/usr/lib/x86_64-linux-gnu -lvulkan
// #cgo darwin LDFLAGS: -lvulkan
// #cgo windows LDFLAGS: -lvulkan-1
// #include <vulkan/vulkan.h>
// #include <stdlib.h>
import "C"
import "unsafe"

type Instance struct{ handle C.VkInstance }
type PhysicalDevice struct{ handle C.VkPhysicalDevice }

// CreateInstance opens a VkInstance requesting the given extensions
// (typically none beyond the base loader for a headless allocator
// demo, or the platform surface extensions when the caller owns a
// window).
func CreateInstance(appName string, extensions []string) (Instance, error) {
	cAppName := C.CString(appName)
	defer C.free(unsafe.Pointer(cAppName))

	var appInfo C.VkApplicationInfo
	appInfo.sType = C.VK_STRUCTURE_TYPE_APPLICATION_INFO
	appInfo.pApplicationName = cAppName
	appInfo.applicationVersion = 1
	appInfo.pEngineName = cAppName
	appInfo.engineVersion = 1
	appInfo.apiVersion = C.VK_API_VERSION_1_2

	var cInfo C.VkInstanceCreateInfo
	cInfo.sType = C.VK_STRUCTURE_TYPE_INSTANCE_CREATE_INFO
	cInfo.pApplicationInfo = &appInfo

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

	var instance C.VkInstance
	result := C.vkCreateInstance(&cInfo, nil, &instance)
	if result != C.VK_SUCCESS {
		return Instance{}, Result(result)
	}
	return Instance{handle: instance}, nil
}

func (i Instance) Destroy() { C.vkDestroyInstance(i.handle, nil) }

// PickPhysicalDevice returns the first enumerated physical device, the
// same "just take the first one" policy the swapdemo command needs and
// nothing more elaborate: device selection is application policy, out
// of scope for this layer.
func (i Instance) PickPhysicalDevice() (PhysicalDevice, error) {
	var count C.uint32_t
	if result := C.vkEnumeratePhysicalDevices(i.handle, &count, nil); result != C.VK_SUCCESS {
		return PhysicalDevice{}, Result(result)
	}
	if count == 0 {
		return PhysicalDevice{}, ErrorInitFailed
	}

	devices := make([]C.VkPhysicalDevice, count)
	if result := C.vkEnumeratePhysicalDevices(i.handle, &count, &devices[0]); result != C.VK_SUCCESS {
		return PhysicalDevice{}, Result(result)
	}
	return PhysicalDevice{handle: devices[0]}, nil
}

func (p PhysicalDevice) GetMemoryProperties() C.VkPhysicalDeviceMemoryProperties {
	var props C.VkPhysicalDeviceMemoryProperties
	C.vkGetPhysicalDeviceMemoryProperties(p.handle, &props)
	return props
}

// FindMemoryType mirrors vulkango's FindMemoryType helper.
func FindMemoryType(props C.VkPhysicalDeviceMemoryProperties, typeBits uint32, want uint32) (uint32, bool) {
	for i := uint32(0); i < uint32(props.memoryTypeCount); i++ {
		flags := uint32(props.memoryTypes[i].propertyFlags)
		if typeBits&(1<<i) != 0 && flags&want == want {
			return i, true
		}
	}
	return 0, false
}
