package swapchain

import "runtime"

// worker is the page-flip goroutine spawned by New, implementing the
// dequeue/wait-fence/present loop of §4.E.4. It runs until Teardown
// clears the run-flag.
func (s *Swapchain) worker() {
	defer close(s.workerDone)

	for s.runFlag.Load() {
		if res := s.flipSignal.wait(0); res == NotReady {
			runtime.Gosched()
			continue
		}

		s.mu.Lock()
		pendingIndex, ok := s.ring.pop()
		s.mu.Unlock()
		if !ok {
			// Woken by Teardown's synthetic post with nothing queued.
			continue
		}

		s.mu.Lock()
		img := &s.images[pendingIndex]
		fence := img.Fence
		s.mu.Unlock()

		if err := s.dev.WaitForFences([]Fence{fence}, true, -1); err != nil {
			debugf("fence wait failed on image %d: %v, invalidating swapchain", pendingIndex, err)
			s.mu.Lock()
			s.valid = false
			s.mu.Unlock()
			s.freeSem.post()
			continue
		}

		s.mu.Lock()
		freedByHandoff := img.Status == Free
		s.mu.Unlock()
		if freedByHandoff {
			s.mu.Lock()
			s.presenter.DestroyImage(img)
			img.Status = Invalid
			s.mu.Unlock()
			s.freeSem.post()
			continue
		}

		s.mu.Lock()
		first := s.firstPresentPending
		ancestor := s.ancestor
		s.mu.Unlock()

		if first {
			if ancestor != nil {
				ancestor.WaitForPendingBuffers()
			}
			s.firstPresentOneShot.post()
			err := s.presenter.PresentImage(pendingIndex)
			s.mu.Lock()
			s.firstPresentPending = false
			if err != nil {
				s.valid = false
			} else {
				img.Status = Presented
			}
			s.mu.Unlock()
			if err != nil {
				debugf("present failed on image %d: %v, invalidating swapchain", pendingIndex, err)
				s.freeSem.post()
			}
		} else {
			err := s.presenter.PresentImage(pendingIndex)
			s.mu.Lock()
			if err != nil {
				s.valid = false
			} else {
				img.Status = Presented
			}
			s.mu.Unlock()
			if err != nil {
				debugf("present failed on image %d: %v, invalidating swapchain", pendingIndex, err)
				s.freeSem.post()
			}
		}
	}
}
