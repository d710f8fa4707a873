package vkpresent

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/NOT-REAL-GAMES/wsiswap/format"
	"github.com/NOT-REAL-GAMES/wsiswap/internal/vkc"
	"github.com/NOT-REAL-GAMES/wsiswap/swapchain"
	"github.com/NOT-REAL-GAMES/wsiswap/wsialloc"
)

// bufferImage is the platform-private data stashed on each
// swapchain.SwapchainImage slot: the DMA-BUF this image is backed by,
// its Vulkan import, and a CPU mapping used for the framebuffer blit.
type bufferImage struct {
	fd      int
	stride  uint32
	size    uint64
	mapping []byte

	vkImage  vkc.Image
	vkMemory vkc.DeviceMemory
}

// Presenter is a direct-to-display swapchain.Presenter backed by a
// Framebuffer and a wsialloc.Allocator.
type Presenter struct {
	fb      *Framebuffer
	alloc   *wsialloc.Allocator
	adaptor *vkc.Adaptor
	owner   *swapchain.Swapchain
	format  uint32
	width   uint32
	height  uint32

	mu        sync.Mutex
	sideTable map[uint32]*bufferImage
	nextIndex uint32
	prevIndex *uint32
}

// New returns a Presenter that will display onto fb, allocate buffers
// through alloc, and import them into the device behind adaptor.
func New(fb *Framebuffer, alloc *wsialloc.Allocator, adaptor *vkc.Adaptor) *Presenter {
	return &Presenter{fb: fb, alloc: alloc, adaptor: adaptor, sideTable: make(map[uint32]*bufferImage)}
}

// Attach records the swapchain this presenter serves so PresentImage
// can call back into UnpresentImage.
func (p *Presenter) Attach(owner *swapchain.Swapchain) {
	p.mu.Lock()
	p.owner = owner
	p.mu.Unlock()
}

func (p *Presenter) InitPlatform(dev swapchain.DeviceAdaptor, info swapchain.CreateInfo) error {
	p.width = info.ImageExtent.Width
	p.height = info.ImageExtent.Height
	p.format = info.ImageFormat
	return nil
}

func (p *Presenter) CreateImage(desc swapchain.ImageDescriptor, slot *swapchain.SwapchainImage) error {
	result, err := p.alloc.Alloc(wsialloc.AllocateInfo{
		Formats: []wsialloc.Format{{Fourcc: desc.Format, Modifier: wsialloc.ModifierLinear}},
		Width:   desc.Width,
		Height:  desc.Height,
	})
	if err != wsialloc.ErrNone {
		return fmt.Errorf("vkpresent: buffer allocation failed: %w", err)
	}

	mapping, mmapErr := unix.Mmap(result.BufferFDs[0], 0, int(result.TotalSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if mmapErr != nil {
		unix.Close(result.BufferFDs[0])
		return fmt.Errorf("vkpresent: mmap buffer: %w", mmapErr)
	}

	buf := &bufferImage{
		fd:      result.BufferFDs[0],
		stride:  uint32(result.RowStrides[0]),
		size:    result.TotalSize,
		mapping: mapping,
	}

	if p.adaptor != nil {
		vkImage, vkErr := p.adaptor.Logical.CreateImage(vkc.ImageCreateInfo{
			Extent:      vkc.Extent2D{Width: desc.Width, Height: desc.Height},
			Format:      formatFromFourcc(desc.Format),
			Usage:       vkc.ImageUsageColorAttachment | vkc.ImageUsageTransferSrc,
			SharingMode: vkc.SharingModeExclusive,
			External:    true,
		})
		if vkErr != nil {
			return fmt.Errorf("vkpresent: create image: %w", vkErr)
		}

		dupFD, dupErr := unix.Dup(buf.fd)
		if dupErr != nil {
			return fmt.Errorf("vkpresent: dup buffer fd: %w", dupErr)
		}
		vkMemory, importErr := p.adaptor.Logical.ImportDmaBufMemory(p.adaptor.Physical, vkImage, dupFD, result.TotalSize)
		if importErr != nil {
			unix.Close(dupFD)
			return fmt.Errorf("vkpresent: import dma-buf memory: %w", importErr)
		}

		buf.vkImage = vkImage
		buf.vkMemory = vkMemory
	}

	fence, fenceErr := p.adaptor.Logical.CreateFence(false)
	if fenceErr != nil {
		return fmt.Errorf("vkpresent: create fence: %w", fenceErr)
	}

	slot.Image = buf.vkImage
	slot.Fence = fence
	slot.Data = buf
	slot.Status = swapchain.Free

	p.mu.Lock()
	p.sideTable[p.nextIndex] = buf
	p.nextIndex++
	p.mu.Unlock()

	return nil
}

func (p *Presenter) DestroyImage(slot *swapchain.SwapchainImage) {
	buf, ok := slot.Data.(*bufferImage)
	if !ok || buf == nil {
		return
	}
	if p.adaptor != nil {
		if buf.vkMemory != (vkc.DeviceMemory{}) {
			p.adaptor.Logical.FreeMemory(buf.vkMemory)
		}
		if buf.vkImage != (vkc.Image{}) {
			p.adaptor.Logical.DestroyImage(buf.vkImage)
		}
	}
	unix.Munmap(buf.mapping)
	unix.Close(buf.fd)
	slot.Data = nil
}

// PresentImage blits the image's mapped bytes onto the framebuffer,
// then calls back into UnpresentImage for whatever image this one
// displaced, following the callback inversion-of-control seam the
// core spec describes for back-ends that support it.
func (p *Presenter) PresentImage(index uint32) error {
	p.mu.Lock()
	owner := p.owner
	p.mu.Unlock()

	if owner == nil {
		return fmt.Errorf("vkpresent: PresentImage called before Attach")
	}

	buf := p.lookup(index)
	if buf == nil {
		return fmt.Errorf("vkpresent: no buffer registered for index %d", index)
	}

	p.fb.Blit(buf.mapping, buf.stride, p.height)

	p.mu.Lock()
	prev := p.prevIndex
	idx := index
	p.prevIndex = &idx
	p.mu.Unlock()

	if prev != nil {
		owner.UnpresentImage(*prev)
	}
	return nil
}

// lookup and the sideTable below let PresentImage recover the
// bufferImage for an index without the core exposing per-slot Data;
// CreateImage registers each slot's buffer as it is built.
func (p *Presenter) lookup(index uint32) *bufferImage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sideTable[index]
}

func formatFromFourcc(fourcc uint32) vkc.Format {
	switch fourcc {
	case format.XR24, format.AR24:
		return vkc.FormatB8G8R8A8Unorm
	case format.RG16:
		return vkc.FormatR5G6B5Unorm
	default:
		return vkc.FormatR8G8B8A8Unorm
	}
}
