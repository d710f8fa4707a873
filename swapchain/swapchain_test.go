package swapchain

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFence is a trivial always-ready fence handle.
type fakeFence struct{ id int }

// fakeDevice is a DeviceAdaptor test double: every device-side call
// succeeds immediately, standing in for a GPU that always keeps up.
type fakeDevice struct {
	nextFence int32

	mu      sync.Mutex
	submits []SubmitInfo
}

func (d *fakeDevice) WaitForFences(fences []Fence, waitAll bool, timeout time.Duration) error {
	return nil
}
func (d *fakeDevice) ResetFences(fences []Fence) error { return nil }

func (d *fakeDevice) QueueSubmit(q Queue, submit SubmitInfo, signal Fence) error {
	d.mu.Lock()
	d.submits = append(d.submits, submit)
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) QueueWaitIdle(q Queue) error                { return nil }
func (d *fakeDevice) GetDeviceQueue(family, index uint32) Queue  { return "queue" }
func (d *fakeDevice) TagDeviceLoaderData(q Queue) error          { return nil }
func (d *fakeDevice) AllocateImageArray(n int) []SwapchainImage  { return make([]SwapchainImage, n) }

func (d *fakeDevice) newFence() Fence {
	return &fakeFence{id: int(atomic.AddInt32(&d.nextFence, 1))}
}

func (d *fakeDevice) submitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.submits)
}

func (d *fakeDevice) lastSubmit() SubmitInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submits[len(d.submits)-1]
}

// fakePresenter is a Presenter test double recording every present and
// counting every destroy call it observes. Each present calls back into
// UnpresentImage for the image it displaced.
type fakePresenter struct {
	dev *fakeDevice

	mu           sync.Mutex
	presented    []uint32
	destroyed    int
	presentDelay time.Duration

	// owner is set after New returns so PresentImage can call back into
	// UnpresentImage the way a real back-end with callback support does.
	owner *Swapchain
	prev  *uint32
}

// getterPresenter wraps a fakePresenter and satisfies FreeBufferGetter,
// freeing a specific image (and posting freeSem) itself instead of
// leaving WaitForFreeBuffer to wait on the semaphore alone.
type getterPresenter struct {
	*fakePresenter
	sc     *Swapchain
	toFree uint32
	gets   int
}

func (g *getterPresenter) GetFreeBuffer(timeout *time.Duration) error {
	g.gets++
	g.sc.UnpresentImage(g.toFree)
	return nil
}

func (p *fakePresenter) InitPlatform(dev DeviceAdaptor, info CreateInfo) error { return nil }

func (p *fakePresenter) CreateImage(desc ImageDescriptor, slot *SwapchainImage) error {
	slot.Image = struct{}{}
	slot.Fence = p.dev.newFence()
	slot.Status = Free
	return nil
}

func (p *fakePresenter) DestroyImage(slot *SwapchainImage) {
	p.mu.Lock()
	p.destroyed++
	p.mu.Unlock()
}

func (p *fakePresenter) PresentImage(index uint32) error {
	if p.presentDelay > 0 {
		time.Sleep(p.presentDelay)
	}
	p.mu.Lock()
	p.presented = append(p.presented, index)
	prev := p.prev
	idx := index
	p.prev = &idx
	p.mu.Unlock()

	if prev != nil && p.owner != nil {
		p.owner.UnpresentImage(*prev)
	}
	return nil
}

func (p *fakePresenter) presentedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.presented)
}

func (p *fakePresenter) presentedOrder() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint32, len(p.presented))
	copy(out, p.presented)
	return out
}

func newTestSwapchain(t *testing.T, imageCount uint32) (*Swapchain, *fakePresenter) {
	t.Helper()
	dev := &fakeDevice{}
	pres := &fakePresenter{dev: dev}
	sc, err := New(dev, pres, CreateInfo{
		MinImageCount: imageCount,
		ImageFormat:   0,
		ImageExtent:   Extent2D{Width: 64, Height: 64},
		PresentMode:   PresentModeFIFO,
	})
	require.NoError(t, err)
	pres.owner = sc
	return sc, pres
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func acquireAndPresent(t *testing.T, sc *Swapchain) uint32 {
	t.Helper()
	var idx uint32
	require.NoError(t, sc.AcquireNextImage(time.Second, nil, nil, &idx))
	err := sc.QueuePresent("queue", PresentInfo{}, idx)
	assert.NoError(t, err)
	return idx
}

// S1: basic present cycle.
func TestBasicPresentCycle(t *testing.T) {
	sc, pres := newTestSwapchain(t, 3)
	defer sc.Teardown()

	for i := 0; i < 4; i++ {
		acquireAndPresent(t, sc)
	}

	var presentedCount, freeCount int
	waitUntil(t, func() bool {
		if pres.presentedCount() != 4 {
			return false
		}
		sc.mu.Lock()
		defer sc.mu.Unlock()
		presentedCount, freeCount = 0, 0
		for _, img := range sc.images {
			switch img.Status {
			case Presented:
				presentedCount++
			case Free:
				freeCount++
			}
		}
		return presentedCount+freeCount == len(sc.images)
	})

	assert.Equal(t, 1, presentedCount)
	assert.Equal(t, 2, freeCount)
}

// S2/S3: recreate handoff and out-of-date surfacing.
func TestRecreateHandoffAndOutOfDate(t *testing.T) {
	a, aPres := newTestSwapchain(t, 3)
	acquireAndPresent(t, a)
	waitUntil(t, func() bool { return aPres.presentedCount() == 1 })

	// Acquire the image that will later be presented into an already
	// out-of-date A, before B exists, so B's deprecation pass (which
	// only destroys FREE images) leaves it untouched.
	var idx uint32
	require.NoError(t, a.AcquireNextImage(time.Second, nil, nil, &idx))

	bDev := &fakeDevice{}
	bPres := &fakePresenter{dev: bDev}
	b, err := New(bDev, bPres, CreateInfo{
		MinImageCount: 3,
		ImageExtent:   Extent2D{Width: 64, Height: 64},
		PresentMode:   PresentModeFIFO,
		OldSwapchain:  a,
	})
	require.NoError(t, err)
	bPres.owner = b

	a.mu.Lock()
	descendant := a.descendant
	a.mu.Unlock()
	assert.Same(t, b, descendant)

	assert.Same(t, a, b.ancestor)

	acquireAndPresent(t, b)
	waitUntil(t, func() bool { return bPres.presentedCount() >= 1 })
	waitUntil(t, func() bool { return b.firstPresentOneShot.posted() })

	// S3: present on A after B has started presenting.
	err = a.QueuePresent("queue", PresentInfo{}, idx)
	assert.Equal(t, OutOfDateKHR, err)

	waitUntil(t, func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.images[idx].Status == Invalid || a.images[idx].Status == Free
	})

	// Tear down the ancestor first: B has started presenting, so A's
	// Teardown waits on B's first-present one-shot. B's worker already
	// consumed A's pending permits through WaitForPendingBuffers, so if B
	// went first A would wait for those permits a second time.
	a.Teardown()
	b.Teardown()
}

// S6: teardown while an image is acquired but never presented must not
// deadlock.
func TestTeardownWithOutstandingAcquire(t *testing.T) {
	sc, _ := newTestSwapchain(t, 3)

	var idx uint32
	require.NoError(t, sc.AcquireNextImage(time.Second, nil, nil, &idx))

	done := make(chan struct{})
	go func() {
		sc.Teardown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("teardown deadlocked with an outstanding acquire")
	}
}

// Invariant: exactly one image is PRESENTED once each present has
// landed, after the first present.
func TestExactlyOnePresentedInvariant(t *testing.T) {
	sc, pres := newTestSwapchain(t, 3)
	defer sc.Teardown()

	for i := 0; i < 6; i++ {
		acquireAndPresent(t, sc)

		var presentedCount int
		waitUntil(t, func() bool {
			if pres.presentedCount() != i+1 {
				return false
			}
			sc.mu.Lock()
			defer sc.mu.Unlock()
			presentedCount = 0
			for _, img := range sc.images {
				if img.Status == Presented {
					presentedCount++
				}
			}
			return presentedCount == 1
		})
		assert.Equal(t, 1, presentedCount)
	}
}

// Invariant: the worker dequeues in the same order queue_present
// enqueued them.
func TestPendingRingPreservesOrder(t *testing.T) {
	sc, pres := newTestSwapchain(t, 4)
	defer sc.Teardown()

	var indices []uint32
	for i := 0; i < 5; i++ {
		indices = append(indices, acquireAndPresent(t, sc))
	}

	waitUntil(t, func() bool { return pres.presentedCount() == 5 })
	assert.Equal(t, indices, pres.presentedOrder())
}

// Property 7 analogue at the swapchain layer: get_swapchain_images with
// a nil slice returns the count; a short slice returns INCOMPLETE.
func TestGetSwapchainImagesCountAndIncomplete(t *testing.T) {
	sc, _ := newTestSwapchain(t, 3)
	defer sc.Teardown()

	n, err := sc.GetSwapchainImages(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	buf := make([]Image, 2)
	n, err = sc.GetSwapchainImages(buf)
	assert.Equal(t, 2, n)
	assert.Equal(t, Incomplete, err)
}

// §4.E.2 step 4: a semaphore and/or fence passed to AcquireNextImage
// is signaled via a dedicated signal-only queue submit.
func TestAcquireNextImageSubmitsSignalOnlyBatch(t *testing.T) {
	dev := &fakeDevice{}
	pres := &fakePresenter{dev: dev}
	sc, err := New(dev, pres, CreateInfo{
		MinImageCount: 2,
		ImageExtent:   Extent2D{Width: 64, Height: 64},
		PresentMode:   PresentModeFIFO,
	})
	require.NoError(t, err)
	pres.owner = sc
	defer sc.Teardown()

	var idx uint32
	require.NoError(t, sc.AcquireNextImage(time.Second, nil, nil, &idx))
	assert.Equal(t, 0, dev.submitCount(), "no signal requested, no submit expected")

	sem := &struct{ id int }{id: 1}
	fence := dev.newFence()
	var idx2 uint32
	require.NoError(t, sc.AcquireNextImage(time.Second, sem, fence, &idx2))

	require.Equal(t, 1, dev.submitCount())
	submit := dev.lastSubmit()
	assert.Empty(t, submit.WaitSemaphores)
	require.Len(t, submit.SignalSemaphores, 1)
	assert.Same(t, sem, submit.SignalSemaphores[0])
}

func TestAcquireNextImageRejectsWhenInvalidated(t *testing.T) {
	sc, _ := newTestSwapchain(t, 2)
	defer sc.Teardown()

	sc.mu.Lock()
	sc.valid = false
	sc.mu.Unlock()

	var idx uint32
	err := sc.AcquireNextImage(time.Second, nil, nil, &idx)
	assert.Equal(t, OutOfHostMemory, err)
}

// WaitForFreeBuffer claims a permit: when none is immediately free it
// asks a FreeBufferGetter presenter to produce one, then re-waits
// rather than returning whatever was free before the call.
func TestWaitForFreeBufferAsksGetterWhenNoneReady(t *testing.T) {
	dev := &fakeDevice{}
	inner := &fakePresenter{dev: dev}
	pres := &getterPresenter{fakePresenter: inner}
	sc, err := New(dev, pres, CreateInfo{
		MinImageCount: 2,
		ImageExtent:   Extent2D{Width: 64, Height: 64},
		PresentMode:   PresentModeFIFO,
	})
	require.NoError(t, err)
	pres.sc = sc
	inner.owner = sc
	defer sc.Teardown()

	var idx0, idx1 uint32
	require.NoError(t, sc.AcquireNextImage(time.Second, nil, nil, &idx0))
	require.NoError(t, sc.AcquireNextImage(time.Second, nil, nil, &idx1))

	pres.toFree = idx0

	require.NoError(t, sc.WaitForFreeBuffer(time.Second))
	assert.Equal(t, 1, pres.gets, "getter should be consulted once no image is immediately free")
}
