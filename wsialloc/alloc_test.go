package wsialloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NOT-REAL-GAMES/wsiswap/format"
)

// fakeHeap is a KernelHeap test double that hands out increasing fake
// file descriptors, or fails on demand.
type fakeHeap struct {
	nextFD    int
	fail      bool
	failCount int
}

func (h *fakeHeap) Allocate(protected bool, size uint64) (int, error) {
	if h.fail {
		h.failCount++
		return -1, assert.AnError
	}
	h.nextFD++
	return h.nextFD, nil
}

func (h *fakeHeap) Close() error { return nil }

func TestAllocFormatNegotiation(t *testing.T) {
	// S4: first candidate is unknown, second (XR24, linear) is accepted.
	heap := &fakeHeap{}
	alloc := New(heap)

	result, err := alloc.Alloc(AllocateInfo{
		Formats: []Format{
			{Fourcc: 0xffffffff, Modifier: ModifierLinear},
			{Fourcc: format.XR24, Modifier: ModifierLinear},
			{Fourcc: format.NV12, Modifier: ModifierLinear},
		},
		Width:  1920,
		Height: 1080,
	})

	require.Equal(t, ErrNone, err)
	assert.Equal(t, format.XR24, result.Format.Fourcc)
	assert.Equal(t, uint64(7680), result.RowStrides[0])
	assert.Equal(t, uint64(8294400), result.TotalSize)
	assert.False(t, result.IsDisjoint)
	assert.Greater(t, result.BufferFDs[0], 0)
}

func TestAllocValidationZeroWidth(t *testing.T) {
	alloc := New(&fakeHeap{})
	_, err := alloc.Alloc(AllocateInfo{
		Formats: []Format{{Fourcc: format.XR24, Modifier: ModifierLinear}},
		Width:   0,
		Height:  1080,
	})
	assert.Equal(t, ErrInvalid, err)
}

func TestAllocValidationOversizedWidth(t *testing.T) {
	alloc := New(&fakeHeap{})
	_, err := alloc.Alloc(AllocateInfo{
		Formats: []Format{{Fourcc: format.XR24, Modifier: ModifierLinear}},
		Width:   200000,
		Height:  1080,
	})
	assert.Equal(t, ErrInvalid, err)
}

func TestAllocValidationEmptyFormatList(t *testing.T) {
	alloc := New(&fakeHeap{})
	_, err := alloc.Alloc(AllocateInfo{
		Formats: nil,
		Width:   64,
		Height:  64,
	})
	assert.Equal(t, ErrInvalid, err)
}

func TestAllocMultiPlaneOnlyIsNotSupported(t *testing.T) {
	alloc := New(&fakeHeap{})
	_, err := alloc.Alloc(AllocateInfo{
		Formats: []Format{{Fourcc: format.NV12, Modifier: ModifierLinear}},
		Width:   64,
		Height:  64,
	})
	assert.Equal(t, ErrNotSupported, err)
}

func TestAllocNoMemorySkipsFDAllocation(t *testing.T) {
	heap := &fakeHeap{}
	alloc := New(heap)

	result, err := alloc.Alloc(AllocateInfo{
		Formats: []Format{{Fourcc: format.XR24, Modifier: ModifierLinear}},
		Width:   64,
		Height:  64,
		Flags:   FlagNoMemory,
	})

	require.Equal(t, ErrNone, err)
	assert.Equal(t, -1, result.BufferFDs[0])
	assert.Equal(t, uint64(256), result.RowStrides[0])
	assert.Equal(t, 0, heap.nextFD)
}

func TestAllocHeapFailureIsNoResource(t *testing.T) {
	alloc := New(&fakeHeap{fail: true})

	_, err := alloc.Alloc(AllocateInfo{
		Formats: []Format{{Fourcc: format.XR24, Modifier: ModifierLinear}},
		Width:   64,
		Height:  64,
	})

	assert.Equal(t, ErrNoResource, err)
}

func TestStrideAlignmentInvariant(t *testing.T) {
	alloc := New(&fakeHeap{})

	for _, width := range []uint32{1, 15, 64, 65, 1920, 4096} {
		result, err := alloc.Alloc(AllocateInfo{
			Formats: []Format{{Fourcc: format.XR24, Modifier: ModifierLinear}},
			Width:   width,
			Height:  8,
		})
		require.Equal(t, ErrNone, err)
		assert.Zero(t, result.RowStrides[0]%64)
		assert.GreaterOrEqual(t, result.RowStrides[0], uint64(width)*4)
		assert.Equal(t, result.RowStrides[0]*8, result.TotalSize)
	}
}
