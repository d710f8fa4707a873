// Package wsialloc selects a supported pixel format from a
// caller-supplied preference list and allocates a single DMA-BUF backed
// by an injectable kernel-heap adaptor.
//
// It is a Go rendering of util/wsialloc from the WSI layer this module
// implements: wsiallocp_alloc lives here as (*Allocator).Alloc,
// wsialloc_dma_buf_heaps.c and wsialloc_ion.c live in dmaheap.go and
// ion.go as KernelHeap implementations.
package wsialloc

import (
	"github.com/NOT-REAL-GAMES/wsiswap/format"
)

// InterfaceVersion is the ABI version this package implements.
// ImplementationVersion (version.go) must equal it or the package fails
// to build, mirroring the WSIALLOC_IMPLEMENTATION_VERSION_SYMBOL check in
// wsialloc_dma_buf_heaps.c / wsialloc_ion.c.
const InterfaceVersion = 3

// minAlign is the mandatory row-stride alignment. Downstream compositors
// and DMA engines require at least this; the value is fixed by contract.
const minAlign = 64

// maxDim is the largest width or height wsiswap will allocate for.
const maxDim = 128000

// ModifierLinear is the "no tiling, no compression" modifier value.
// wsiswap supports only this modifier.
const ModifierLinear uint64 = 0

// AllocFlags controls optional allocation behavior.
type AllocFlags uint32

const (
	// FlagProtected requests memory from the protected heap, if one was
	// registered with the allocator.
	FlagProtected AllocFlags = 1 << iota
	// FlagNoMemory skips FD allocation; only format metadata is returned.
	FlagNoMemory
)

// Format is a caller-supplied format candidate.
type Format struct {
	Fourcc   uint32
	Modifier uint64
	Flags    uint32
}

// AllocateInfo is the input to Alloc.
type AllocateInfo struct {
	Formats []Format
	Width   uint32
	Height  uint32
	Flags   AllocFlags
}

// Result is the output of a successful Alloc.
type Result struct {
	Format      Format
	NumPlanes   int
	RowStrides  [format.MaxPlanes]uint64
	Offsets     [format.MaxPlanes]uint64
	BufferFDs   [format.MaxPlanes]int
	IsDisjoint  bool
	TotalSize   uint64
}

// KernelHeap performs the one primitive a kernel heap adaptor needs to
// support: turn a byte size into a new file descriptor. Component C of
// the allocator (DMABufHeap, Ion) implement this.
type KernelHeap interface {
	Allocate(protected bool, size uint64) (fd int, err error)
	Close() error
}

// Allocator is the allocator core (component B): it validates requests,
// selects a format, computes strides/offsets/total size, and delegates
// buffer creation to a KernelHeap.
type Allocator struct {
	heap KernelHeap
}

// New wraps a KernelHeap adaptor in an Allocator.
func New(heap KernelHeap) *Allocator {
	return &Allocator{heap: heap}
}

// Close releases the underlying kernel heap handles.
func (a *Allocator) Close() error {
	return a.heap.Close()
}

func roundUpAlign(size uint64) uint64 {
	return (size + minAlign - 1) &^ (minAlign - 1)
}

func validate(info AllocateInfo) bool {
	if len(info.Formats) == 0 {
		return false
	}
	if info.Width < 1 || info.Height < 1 || info.Width > maxDim || info.Height > maxDim {
		return false
	}
	return true
}

type formatDescriptor struct {
	format Format
	spec   format.Spec
}

// calculateFormatProperties computes per-plane stride/offset and the
// total buffer size for a resolved candidate. It rejects anything but a
// single linear plane (multi-plane formats such as NV12 resolve in the
// table but are rejected here), so only plane 0 is ever computed.
func calculateFormatProperties(desc formatDescriptor, width, height uint32) (strides, offsets [format.MaxPlanes]uint64, total uint64, err Error) {
	if desc.format.Modifier != ModifierLinear {
		return strides, offsets, 0, ErrNotSupported
	}
	if desc.spec.NumPlanes > 1 {
		return strides, offsets, 0, ErrNotSupported
	}

	bytesPerPixel := uint64(desc.spec.Bpp[0]) / 8
	stride := roundUpAlign(uint64(width) * bytesPerPixel)
	strides[0] = stride
	offsets[0] = 0
	total = stride * uint64(height)

	return strides, offsets, total, ErrNone
}

// Alloc implements §4.B of the swapchain shim's WSI-alloc component:
// walk the candidate formats in order, accept the first one the table
// resolves and the size calculator accepts, then (unless FlagNoMemory is
// set) delegate one heap allocation to the KernelHeap.
func (a *Allocator) Alloc(info AllocateInfo) (Result, Error) {
	if a == nil || !validate(info) {
		return Result{}, ErrInvalid
	}

	var selected formatDescriptor
	var strides, offsets [format.MaxPlanes]uint64
	var total uint64
	lastErr := ErrNotSupported
	found := false

	for _, candidate := range info.Formats {
		spec, ok := format.Lookup(candidate.Fourcc)
		if !ok {
			lastErr = ErrNotSupported
			continue
		}

		desc := formatDescriptor{format: candidate, spec: spec}
		s, o, t, err := calculateFormatProperties(desc, info.Width, info.Height)
		if err != ErrNone {
			lastErr = err
			continue
		}

		selected = desc
		strides, offsets, total = s, o, t
		found = true
		break
	}

	if !found {
		return Result{}, lastErr
	}

	result := Result{
		Format:     selected.format,
		NumPlanes:  selected.spec.NumPlanes,
		RowStrides: strides,
		Offsets:    offsets,
		TotalSize:  total,
		IsDisjoint: false,
	}
	for i := range result.BufferFDs {
		result.BufferFDs[i] = -1
	}

	if info.Flags&FlagNoMemory != 0 {
		return result, ErrNone
	}

	fd, err := a.heap.Allocate(info.Flags&FlagProtected != 0, total)
	if err != nil {
		return Result{}, ErrNoResource
	}

	// The current format set is single-plane, so the disjoint-buffers
	// path is unreachable; duplicate the one FD across every plane slot
	// defensively, matching wsiallocp_alloc.
	for plane := 0; plane < selected.spec.NumPlanes; plane++ {
		result.BufferFDs[plane] = fd
	}

	return result, ErrNone
}
