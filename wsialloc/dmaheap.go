//go:build linux

package wsialloc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultHeapName is the DMA-BUF heap wsiswap opens when no other name
// is configured: /dev/dma_heap/system.
const DefaultHeapName = "system"

// dmaHeapAllocationData mirrors struct dma_heap_allocation_data from
// <linux/dma-heap.h>.
type dmaHeapAllocationData struct {
	Len       uint64
	Fd        uint32
	FdFlags   uint32
	HeapFlags uint64
}

var dmaHeapIoctlAlloc = iowr('H', 0x0, unsafe.Sizeof(dmaHeapAllocationData{}))

// DMABufHeapOption configures a DMABufHeap during construction.
type DMABufHeapOption func(*dmaBufHeapConfig)

type dmaBufHeapConfig struct {
	memoryHeapName    string
	protectedHeapName string
}

// WithMemoryHeapName overrides DefaultHeapName for the general-purpose
// (non-protected) allocation heap.
func WithMemoryHeapName(name string) DMABufHeapOption {
	return func(c *dmaBufHeapConfig) { c.memoryHeapName = name }
}

// WithProtectedHeapName registers a protected DMA-BUF heap. Without
// this option, allocations with FlagProtected fail with ErrNoResource.
func WithProtectedHeapName(name string) DMABufHeapOption {
	return func(c *dmaBufHeapConfig) { c.protectedHeapName = name }
}

// DMABufHeap is a KernelHeap backed by the Linux DMA-BUF heaps subsystem
// (/dev/dma_heap/<name>), the Go equivalent of wsialloc_dma_buf_heaps.c.
type DMABufHeap struct {
	memoryFD    int
	protectedFD int
}

// NewDMABufHeap opens the configured heap(s). Open failure closes any fd
// already acquired and returns ErrNoResource without leaking descriptors.
func NewDMABufHeap(opts ...DMABufHeapOption) (*DMABufHeap, error) {
	cfg := dmaBufHeapConfig{memoryHeapName: DefaultHeapName}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &DMABufHeap{memoryFD: -1, protectedFD: -1}

	fd, err := unix.Open("/dev/dma_heap/"+cfg.memoryHeapName, unix.O_RDWR, 0)
	if err != nil {
		return nil, ErrNoResource
	}
	h.memoryFD = fd

	if cfg.protectedHeapName != "" {
		pfd, err := unix.Open("/dev/dma_heap/"+cfg.protectedHeapName, unix.O_RDWR, 0)
		if err != nil {
			h.Close()
			return nil, ErrNoResource
		}
		h.protectedFD = pfd
	}

	return h, nil
}

// Allocate issues one DMA_HEAP_IOCTL_ALLOC to the appropriate heap.
func (h *DMABufHeap) Allocate(protected bool, size uint64) (int, error) {
	fd := h.memoryFD
	if protected {
		fd = h.protectedFD
	}
	if fd < 0 {
		return -1, fmt.Errorf("wsialloc: dma-buf heap not available (protected=%v)", protected)
	}

	req := dmaHeapAllocationData{
		Len:     size,
		FdFlags: unix.O_RDWR | unix.O_CLOEXEC,
	}
	if err := ioctl(fd, dmaHeapIoctlAlloc, unsafe.Pointer(&req)); err != nil {
		return -1, err
	}
	return int(req.Fd), nil
}

// Close releases both heap handles. Safe to call more than once.
func (h *DMABufHeap) Close() error {
	closeFD(&h.memoryFD)
	closeFD(&h.protectedFD)
	return nil
}

func closeFD(fd *int) {
	if *fd >= 0 {
		unix.Close(*fd)
		*fd = -1
	}
}

// ioctl issues a raw ioctl(2) with a pointer argument, since x/sys/unix
// does not carry request numbers for dma-heap or ION uapi structures.
func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
