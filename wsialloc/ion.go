//go:build linux

package wsialloc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const ionNumHeapIDs = 32
const ionHeapTypeDMA = 4

// ionHeapData mirrors struct ion_heap_data.
type ionHeapData struct {
	Name      [32]byte
	Type      uint32
	HeapID    uint32
	Reserved0 uint32
	Reserved1 uint32
	Reserved2 uint32
}

// ionHeapQuery mirrors struct ion_heap_query.
type ionHeapQuery struct {
	Cnt       uint32
	Reserved0 uint32
	Heaps     uint64
	Reserved1 uint32
	Reserved2 uint32
}

// ionAllocationData mirrors struct ion_allocation_data.
type ionAllocationData struct {
	Len        uint64
	HeapIDMask uint32
	Flags      uint32
	Fd         uint32
	Unused     uint32
}

var (
	ionIoctlHeapQuery = iowr('I', 8, unsafe.Sizeof(ionHeapQuery{}))
	ionIoctlAlloc     = iowr('I', 0, unsafe.Sizeof(ionAllocationData{}))
)

// Ion is a KernelHeap backed by the legacy /dev/ion ABI, the Go
// equivalent of wsialloc_ion.c.
type Ion struct {
	fd                   int
	allocHeapID          uint32
	protectedAllocHeapID uint32
	protectedHeapExists  bool
}

func findAllocHeapID(fd int) (uint32, error) {
	heaps := make([]ionHeapData, ionNumHeapIDs)
	query := ionHeapQuery{
		Cnt:   ionNumHeapIDs,
		Heaps: uint64(uintptr(unsafe.Pointer(&heaps[0]))),
	}
	if err := ioctl(fd, ionIoctlHeapQuery, unsafe.Pointer(&query)); err != nil {
		return 0, err
	}
	for i := uint32(0); i < query.Cnt && i < ionNumHeapIDs; i++ {
		if heaps[i].Type == ionHeapTypeDMA {
			return heaps[i].HeapID, nil
		}
	}
	return 0, fmt.Errorf("wsialloc: no DMA ion heap found")
}

// NewIon opens /dev/ion and resolves the DMA heap id. On failure it
// simply returns the error: there is no partial-allocator state left
// to tear down.
func NewIon() (*Ion, error) {
	fd, err := unix.Open("/dev/ion", unix.O_RDONLY, 0)
	if err != nil {
		return nil, ErrNoResource
	}

	heapID, err := findAllocHeapID(fd)
	if err != nil {
		unix.Close(fd)
		return nil, ErrNoResource
	}

	return &Ion{fd: fd, allocHeapID: heapID}, nil
}

// Allocate issues one ION_IOC_ALLOC against the resolved heap id.
func (a *Ion) Allocate(protected bool, size uint64) (int, error) {
	heapID := a.allocHeapID
	if protected {
		if !a.protectedHeapExists {
			return -1, fmt.Errorf("wsialloc: ion protected heap not registered")
		}
		heapID = a.protectedAllocHeapID
	}

	req := ionAllocationData{
		Len:        size,
		HeapIDMask: 1 << heapID,
	}
	if err := ioctl(a.fd, ionIoctlAlloc, unsafe.Pointer(&req)); err != nil {
		return -1, err
	}
	return int(req.Fd), nil
}

// Close releases the /dev/ion handle.
func (a *Ion) Close() error {
	closeFD(&a.fd)
	return nil
}
