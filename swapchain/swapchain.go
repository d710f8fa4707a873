package swapchain

import (
	"sync"
	"sync/atomic"
	"time"
)

// Swapchain is the image-lifecycle engine: an image pool, a pending
// ring, the free-image and page-flip semaphores, and the goroutine that
// drives page flips, all guarded by a single mutex the way
// gviegas-neo3's driver/vk present.go guards its own swapchain
// bookkeeping rather than splitting it across several finer locks.
type Swapchain struct {
	mu sync.Mutex

	dev       DeviceAdaptor
	presenter Presenter
	queue     Queue

	images        []SwapchainImage
	imageCount    int
	acquiredCount int

	ring       *pendingRing
	freeSem    *countingSemaphore
	flipSignal *countingSemaphore

	firstPresentPending bool
	firstPresentOneShot *binarySemaphore

	valid bool

	ancestor   *Swapchain
	descendant *Swapchain

	runFlag    atomic.Bool
	workerDone chan struct{}
}

// New performs the fourteen-step construction sequence of §4.E.1:
// image-array allocation, platform init, per-image creation, the
// presentation queue lookup, and finally spawning the page-flip
// worker once every field it reads is valid.
func New(dev DeviceAdaptor, presenter Presenter, info CreateInfo) (*Swapchain, error) {
	if info.PresentMode != PresentModeFIFO && info.PresentMode != PresentModeFIFORelaxed {
		return nil, InitializationFailed
	}

	s := &Swapchain{
		dev:                 dev,
		presenter:           presenter,
		imageCount:          int(info.MinImageCount),
		firstPresentPending: true,
		firstPresentOneShot: newBinarySemaphore(),
		workerDone:          make(chan struct{}),
	}

	s.images = dev.AllocateImageArray(s.imageCount)

	if err := presenter.InitPlatform(dev, info); err != nil {
		return nil, err
	}

	for i := range s.images {
		s.images[i] = SwapchainImage{Status: Invalid}
	}

	s.ring = newPendingRing(s.imageCount)
	s.freeSem = newCountingSemaphore(s.imageCount)
	s.flipSignal = newCountingSemaphore(0)

	desc := ImageDescriptor{
		Width:              info.ImageExtent.Width,
		Height:             info.ImageExtent.Height,
		MipLevels:          1,
		ArrayLayers:        1,
		Format:             info.ImageFormat,
		Usage:              info.ImageUsage,
		SharingMode:        info.ImageSharingMode,
		QueueFamilyIndices: info.QueueFamilyIndices,
	}

	for i := range s.images {
		if err := presenter.CreateImage(desc, &s.images[i]); err != nil {
			return nil, err
		}
	}

	s.queue = dev.GetDeviceQueue(0, 0)
	if err := dev.TagDeviceLoaderData(s.queue); err != nil {
		return nil, err
	}

	s.valid = true
	s.runFlag.Store(true)
	go s.worker()

	if info.OldSwapchain != nil {
		s.ancestor = info.OldSwapchain
		info.OldSwapchain.deprecateFor(s)
	}

	return s, nil
}

// AcquireNextImage implements §4.E.2, including step 4: if the caller
// supplied a semaphore or fence to be signaled on acquisition, a
// signal-only batch (no command buffers, no wait semaphores) is
// submitted to the presentation queue before returning, the same
// shape acquire_next_image submits.
func (s *Swapchain) AcquireNextImage(timeout time.Duration, outSemaphore Semaphore, outFence Fence, outIndex *uint32) error {
	if err := s.WaitForFreeBuffer(timeout); err != nil {
		return err
	}

	s.mu.Lock()

	if !s.valid {
		s.mu.Unlock()
		return OutOfHostMemory
	}

	found := false
	for i := range s.images {
		if s.images[i].Status == Free {
			s.images[i].Status = Acquired
			s.acquiredCount++
			*outIndex = uint32(i)
			found = true
			break
		}
	}
	queue := s.queue
	s.mu.Unlock()

	if !found {
		// The semaphore accounting guarantees a FREE image exists
		// whenever wait() succeeds; reaching here means that invariant
		// was broken elsewhere.
		return OutOfHostMemory
	}

	if outSemaphore != nil || outFence != nil {
		var signal []Semaphore
		if outSemaphore != nil {
			signal = []Semaphore{outSemaphore}
		}
		if err := s.dev.QueueSubmit(queue, SubmitInfo{SignalSemaphores: signal}, outFence); err != nil {
			return err
		}
	}

	return nil
}

// QueuePresent implements §4.E.3.
func (s *Swapchain) QueuePresent(queue Queue, info PresentInfo, imageIndex uint32) error {
	s.mu.Lock()

	descendantTookOver := s.descendant != nil && s.descendant.hasStartedPresenting()

	img := &s.images[imageIndex]
	s.dev.ResetFences([]Fence{img.Fence})

	if err := s.dev.QueueSubmit(queue, SubmitInfo{WaitSemaphores: info.WaitSemaphores}, img.Fence); err != nil {
		s.mu.Unlock()
		return err
	}

	s.ring.push(imageIndex)
	s.acquiredCount--

	if descendantTookOver {
		img.Status = Free
	} else {
		img.Status = Pending
	}
	s.mu.Unlock()

	// The signal post must happen after the ring write is visible, and
	// must not be made while holding s.mu since it can wake the worker
	// immediately.
	s.flipSignal.post()

	if descendantTookOver {
		return OutOfDateKHR
	}
	return nil
}

// GetSwapchainImages implements §4.E.7.
func (s *Swapchain) GetSwapchainImages(imagesOut []Image) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if imagesOut == nil {
		return len(s.images), nil
	}

	n := len(imagesOut)
	if n > len(s.images) {
		n = len(s.images)
	}
	for i := 0; i < n; i++ {
		imagesOut[i] = s.images[i].Image
	}
	if n < len(s.images) {
		return n, Incomplete
	}
	return n, nil
}

// UnpresentImage transitions a displaced image back to FREE (or
// destroys it outright if this swapchain has been deprecated), then
// posts the free-image semaphore. Platform back-ends that call back
// into the core invoke this directly from present_image; back-ends
// that cannot call back should have present_image return the displaced
// index so the caller invokes it instead (§9).
func (s *Swapchain) UnpresentImage(index uint32) {
	s.mu.Lock()
	img := &s.images[index]
	if s.descendant != nil {
		s.presenter.DestroyImage(img)
		img.Status = Invalid
	} else {
		img.Status = Free
	}
	s.mu.Unlock()

	s.freeSem.post()
}

// deprecateFor is Deprecate, invoked internally at construction time by
// the descendant's New.
func (s *Swapchain) deprecateFor(descendant *Swapchain) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.images {
		if s.images[i].Status == Free {
			s.presenter.DestroyImage(&s.images[i])
			s.images[i].Status = Invalid
		}
	}
	s.descendant = descendant
}

// Deprecate is the public form of the same operation, for callers that
// deprecate a swapchain without going through New (e.g. tests).
func (s *Swapchain) Deprecate(descendant *Swapchain) { s.deprecateFor(descendant) }

func (s *Swapchain) hasStartedPresenting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, img := range s.images {
		if img.Status == Presented || img.Status == Pending {
			return true
		}
	}
	return false
}

// ClearAncestor breaks the link from this swapchain to its ancestor.
func (s *Swapchain) ClearAncestor() {
	s.mu.Lock()
	s.ancestor = nil
	s.mu.Unlock()
}

// ClearDescendant breaks the link from this swapchain to its
// descendant.
func (s *Swapchain) ClearDescendant() {
	s.mu.Lock()
	s.descendant = nil
	s.mu.Unlock()
}

// WaitForPendingBuffers implements §4.E.5: blocks until exactly one
// PRESENTED image remains, by consuming image_count-acquired_count-1
// free-image permits.
func (s *Swapchain) WaitForPendingBuffers() {
	s.mu.Lock()
	wait := s.imageCount - s.acquiredCount - 1
	s.mu.Unlock()

	for i := 0; i < wait; i++ {
		s.WaitForFreeBuffer(-1)
	}
}

// WaitForFreeBuffer claims one FREE-image permit, blocking until either
// one is already available or the presenter can produce one within
// timeout. It first polls the free-image semaphore without blocking;
// if none is free yet, it gives the presenter a chance to free one
// itself (the FreeBufferGetter seam, for back-ends able to reclaim a
// displaced image on demand) before waiting out the remainder of
// timeout, mirroring wait_for_free_buffer's poll/get_free_buffer/rewait
// sequence.
func (s *Swapchain) WaitForFreeBuffer(timeout time.Duration) error {
	res := s.freeSem.wait(0)
	if res == NotReady {
		if getter, ok := s.presenter.(FreeBufferGetter); ok {
			remaining := timeout
			if err := getter.GetFreeBuffer(&remaining); err != nil {
				return err
			}
			res = s.freeSem.wait(remaining)
		} else {
			res = s.freeSem.wait(timeout)
		}
	}
	if res != Success {
		return res
	}
	return nil
}

// Teardown implements §4.E.6.
func (s *Swapchain) Teardown() {
	s.mu.Lock()
	descendant := s.descendant
	s.mu.Unlock()

	if descendant != nil && descendant.hasStartedPresenting() {
		descendant.firstPresentOneShot.wait()
	} else {
		s.WaitForPendingBuffers()
	}

	s.dev.QueueWaitIdle(s.queue)

	s.runFlag.Store(false)
	s.flipSignal.post() // wake the worker so it observes the cleared run-flag
	<-s.workerDone

	s.mu.Lock()
	if s.ancestor != nil {
		s.ancestor.ClearDescendant()
		s.ancestor = nil
	}
	if s.descendant != nil {
		s.descendant.ClearAncestor()
		s.descendant = nil
	}
	for i := range s.images {
		if s.images[i].Status != Invalid {
			s.presenter.DestroyImage(&s.images[i])
		}
	}
	s.images = nil
	s.ring = nil
	s.mu.Unlock()
}
