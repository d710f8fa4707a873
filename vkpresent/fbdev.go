// Package vkpresent is a direct-to-display swapchain.Presenter: it
// creates each swapchain image as a wsialloc DMA-BUF buffer imported
// into a Vulkan image for rendering, and presents by memcpy'ing the
// buffer's mapped bytes onto a Linux framebuffer device, the simplest
// concrete instance of the "presenter" back-end the core spec leaves
// abstract. The framebuffer ioctl/mmap plumbing follows the
// FBIOGET_*SCREENINFO + unix.Mmap pattern used for /dev/fb0 access
// elsewhere in the retrieved corpus.
package vkpresent

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	fbioGetVScreenInfo = 0x4600
	fbioGetFScreenInfo = 0x4602
)

// fbFixScreenInfo mirrors the fixed part of struct fb_fix_screeninfo
// (the fields this package actually reads).
type fbFixScreenInfo struct {
	ID           [16]byte
	SmemStart    uint64
	SmemLen      uint32
	Type         uint32
	TypeAux      uint32
	Visual       uint32
	Xpanstep     uint16
	Ypanstep     uint16
	Ywrapstep    uint16
	LineLength   uint32
	_            [24]byte
}

// fbVarScreenInfo mirrors the variable part of struct
// fb_var_screeninfo (fields this package reads).
type fbVarScreenInfo struct {
	Xres, Yres             uint32
	XresVirtual, YresVirtual uint32
	Xoffset, Yoffset       uint32
	BitsPerPixel           uint32
	Grayscale              uint32
	_                      [128]byte
}

// Framebuffer is a memory-mapped /dev/fbN device.
type Framebuffer struct {
	fd         int
	mem        []byte
	lineLength uint32
	width      uint32
	height     uint32
	bpp        uint32
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// OpenFramebuffer opens and mmaps a Linux framebuffer device, e.g.
// "/dev/fb0".
func OpenFramebuffer(path string) (*Framebuffer, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("vkpresent: open %s: %w", path, err)
	}

	var fixInfo fbFixScreenInfo
	if err := ioctl(fd, fbioGetFScreenInfo, unsafe.Pointer(&fixInfo)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("vkpresent: FBIOGET_FSCREENINFO: %w", err)
	}

	var varInfo fbVarScreenInfo
	if err := ioctl(fd, fbioGetVScreenInfo, unsafe.Pointer(&varInfo)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("vkpresent: FBIOGET_VSCREENINFO: %w", err)
	}

	mem, err := unix.Mmap(fd, 0, int(fixInfo.SmemLen), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("vkpresent: mmap: %w", err)
	}

	return &Framebuffer{
		fd:         fd,
		mem:        mem,
		lineLength: fixInfo.LineLength,
		width:      varInfo.Xres,
		height:     varInfo.Yres,
		bpp:        varInfo.BitsPerPixel,
	}, nil
}

// Blit copies src, a tightly-packed buffer with the given stride, into
// the framebuffer, row by row to respect the framebuffer's own
// (possibly larger) line length.
func (f *Framebuffer) Blit(src []byte, srcStride uint32, height uint32) {
	rowBytes := srcStride
	if f.lineLength < rowBytes {
		rowBytes = f.lineLength
	}
	rows := height
	if f.height < rows {
		rows = f.height
	}
	for y := uint32(0); y < rows; y++ {
		srcOff := y * srcStride
		dstOff := y * f.lineLength
		if int(srcOff+rowBytes) > len(src) || int(dstOff+rowBytes) > len(f.mem) {
			break
		}
		copy(f.mem[dstOff:dstOff+rowBytes], src[srcOff:srcOff+rowBytes])
	}
}

func (f *Framebuffer) Close() error {
	unix.Munmap(f.mem)
	return unix.Close(f.fd)
}
