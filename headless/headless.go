// Package headless provides an in-memory swapchain.Presenter and
// swapchain.DeviceAdaptor pair with no GPU or display dependency,
// grounded on the same test-double shape vulkango's own examples use
// to exercise the swapchain and allocator engines without a window.
// It is the default back-end for cmd/swapdemo and is suitable for
// integration tests that want the real swapchain state machine driving
// real (fake) fences rather than a per-test mock.
package headless

import (
	"sync"
	"time"

	"github.com/NOT-REAL-GAMES/wsiswap/swapchain"
)

// fence is a software fence: signal marks it done, wait blocks until
// signal has been called.
type fence struct {
	mu       sync.Mutex
	cond     *sync.Cond
	signaled bool
}

func newFence() *fence {
	f := &fence{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *fence) signal() {
	f.mu.Lock()
	f.signaled = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

func (f *fence) wait() {
	f.mu.Lock()
	for !f.signaled {
		f.cond.Wait()
	}
	f.mu.Unlock()
}

func (f *fence) reset() {
	f.mu.Lock()
	f.signaled = false
	f.mu.Unlock()
}

// Device is a swapchain.DeviceAdaptor with no backing GPU: fences are
// software condition variables, immediately signaled on submit, and
// queues are opaque tokens.
type Device struct {
	mu    sync.Mutex
	next  int
	queue string
}

// NewDevice returns a Device ready to be handed to swapchain.New.
func NewDevice() *Device { return &Device{queue: "headless-queue"} }

func (d *Device) WaitForFences(fences []swapchain.Fence, waitAll bool, timeout time.Duration) error {
	if len(fences) == 0 {
		return nil
	}
	if waitAll {
		for _, f := range fences {
			f.(*fence).wait()
		}
		return nil
	}

	// Wait for any one of them: race their individual waits and return
	// once the first completes.
	done := make(chan struct{}, len(fences))
	for _, f := range fences {
		go func(f *fence) {
			f.wait()
			done <- struct{}{}
		}(f.(*fence))
	}
	<-done
	return nil
}

func (d *Device) ResetFences(fences []swapchain.Fence) error {
	for _, f := range fences {
		f.(*fence).reset()
	}
	return nil
}

func (d *Device) QueueSubmit(q swapchain.Queue, submit swapchain.SubmitInfo, signal swapchain.Fence) error {
	if signal != nil {
		signal.(*fence).signal()
	}
	return nil
}

func (d *Device) QueueWaitIdle(q swapchain.Queue) error { return nil }

func (d *Device) GetDeviceQueue(family, index uint32) swapchain.Queue { return d.queue }

func (d *Device) TagDeviceLoaderData(q swapchain.Queue) error { return nil }

func (d *Device) AllocateImageArray(n int) []swapchain.SwapchainImage {
	return make([]swapchain.SwapchainImage, n)
}

// pixelBuffer is the platform-private data a headless image slot
// carries: a plain byte slice standing in for a mapped DMA-BUF.
type pixelBuffer struct {
	width, height uint32
	bytes         []byte
}

// Presenter is a swapchain.Presenter that "displays" an image by
// recording its index and present time and calling back into
// UnpresentImage for the image it displaced. Front is allocated at
// InitPlatform with the image size, but PresentImage does not copy
// image bytes into it.
type Presenter struct {
	mu    sync.Mutex
	Front []byte

	prevIndex   *uint32
	owner       *swapchain.Swapchain
	presentedAt map[uint32]time.Time
}

// NewPresenter returns a Presenter. Owner must be set once the
// swapchain has been constructed, so PresentImage can call back into
// UnpresentImage per the inversion-of-control seam described for
// platform back-ends that support it.
func NewPresenter() *Presenter {
	return &Presenter{presentedAt: make(map[uint32]time.Time)}
}

// Attach records the swapchain this presenter serves, so PresentImage
// can call back into UnpresentImage. Must be called after
// swapchain.New returns.
func (p *Presenter) Attach(owner *swapchain.Swapchain) {
	p.mu.Lock()
	p.owner = owner
	p.mu.Unlock()
}

func (p *Presenter) InitPlatform(dev swapchain.DeviceAdaptor, info swapchain.CreateInfo) error {
	p.mu.Lock()
	p.Front = make([]byte, 4*int(info.ImageExtent.Width)*int(info.ImageExtent.Height))
	p.mu.Unlock()
	return nil
}

func (p *Presenter) CreateImage(desc swapchain.ImageDescriptor, slot *swapchain.SwapchainImage) error {
	buf := &pixelBuffer{
		width:  desc.Width,
		height: desc.Height,
		bytes:  make([]byte, 4*int(desc.Width)*int(desc.Height)),
	}
	slot.Image = buf
	slot.Fence = newFence()
	slot.Data = buf
	slot.Status = swapchain.Free
	return nil
}

func (p *Presenter) DestroyImage(slot *swapchain.SwapchainImage) {
	slot.Image = nil
	slot.Data = nil
}

func (p *Presenter) PresentImage(index uint32) error {
	p.mu.Lock()
	prev := p.prevIndex
	idx := index
	p.prevIndex = &idx
	p.presentedAt[index] = time.Now()
	owner := p.owner
	p.mu.Unlock()

	if prev != nil && owner != nil {
		owner.UnpresentImage(*prev)
	}
	return nil
}
