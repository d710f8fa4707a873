// Command swapdemo exercises the wsiswap swapchain engine end to end:
// it builds a small pool of images, drives a few acquire/present
// cycles, and tears the swapchain down, either against the in-memory
// headless back-end (the default, no GPU or display required) or
// against a real Vulkan device presenting onto a Linux framebuffer.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/NOT-REAL-GAMES/wsiswap/format"
	"github.com/NOT-REAL-GAMES/wsiswap/headless"
	"github.com/NOT-REAL-GAMES/wsiswap/internal/vkc"
	"github.com/NOT-REAL-GAMES/wsiswap/swapchain"
	"github.com/NOT-REAL-GAMES/wsiswap/vkpresent"
	"github.com/NOT-REAL-GAMES/wsiswap/wsialloc"
)

func main() {
	imageCount := flag.Uint("images", 3, "swapchain image count")
	cycles := flag.Int("cycles", 8, "number of acquire/present cycles to drive")
	width := flag.Uint("width", 1920, "image width")
	height := flag.Uint("height", 1080, "image height")
	fbPath := flag.String("fb", "", "present onto this framebuffer device (e.g. /dev/fb0) instead of running headless")
	debug := flag.Bool("debug", false, "enable swapchain debug logging")
	flag.Parse()

	swapchain.Debug = *debug

	info := swapchain.CreateInfo{
		MinImageCount: uint32(*imageCount),
		ImageFormat:   format.XR24,
		ImageExtent:   swapchain.Extent2D{Width: uint32(*width), Height: uint32(*height)},
		PresentMode:   swapchain.PresentModeFIFO,
	}

	var (
		sc  *swapchain.Swapchain
		err error
	)
	if *fbPath != "" {
		sc, err = runOnFramebuffer(*fbPath, info)
	} else {
		sc, err = runHeadless(info)
	}
	if err != nil {
		log.Fatalf("swapdemo: %v", err)
	}
	defer sc.Teardown()

	for i := 0; i < *cycles; i++ {
		var idx uint32
		if err := sc.AcquireNextImage(time.Second, nil, nil, &idx); err != nil {
			log.Fatalf("swapdemo: acquire %d: %v", i, err)
		}
		if err := sc.QueuePresent("queue", swapchain.PresentInfo{}, idx); err != nil {
			log.Fatalf("swapdemo: present %d: %v", i, err)
		}
		fmt.Printf("cycle %d: presented image %d\n", i, idx)
	}

	time.Sleep(50 * time.Millisecond) // let the last flip land before teardown
}

func runHeadless(info swapchain.CreateInfo) (*swapchain.Swapchain, error) {
	dev := headless.NewDevice()
	pres := headless.NewPresenter()

	sc, err := swapchain.New(dev, pres, info)
	if err != nil {
		return nil, fmt.Errorf("create headless swapchain: %w", err)
	}
	pres.Attach(sc)
	return sc, nil
}

func runOnFramebuffer(path string, info swapchain.CreateInfo) (*swapchain.Swapchain, error) {
	fb, err := vkpresent.OpenFramebuffer(path)
	if err != nil {
		return nil, err
	}

	heap, err := wsialloc.NewDMABufHeap()
	if err != nil {
		return nil, fmt.Errorf("open dma-buf heap: %w", err)
	}
	alloc := wsialloc.New(heap)

	instance, err := vkc.CreateInstance("swapdemo", nil)
	if err != nil {
		return nil, fmt.Errorf("create vulkan instance: %w", err)
	}
	physical, err := instance.PickPhysicalDevice()
	if err != nil {
		return nil, fmt.Errorf("pick physical device: %w", err)
	}
	family, ok := physical.FindGraphicsQueueFamily()
	if !ok {
		return nil, fmt.Errorf("no graphics queue family")
	}
	logical, err := physical.CreateDevice(family, []string{"VK_KHR_external_memory_fd", "VK_EXT_external_memory_dma_buf"})
	if err != nil {
		return nil, fmt.Errorf("create vulkan device: %w", err)
	}

	adaptor := &vkc.Adaptor{Physical: physical, Logical: logical, Family: family}
	pres := vkpresent.New(fb, alloc, adaptor)

	sc, err := swapchain.New(adaptor, pres, info)
	if err != nil {
		return nil, fmt.Errorf("create display swapchain: %w", err)
	}
	pres.Attach(sc)
	return sc, nil
}
