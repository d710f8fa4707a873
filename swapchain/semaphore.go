package swapchain

import (
	"sync"
	"time"
)

// countingSemaphore is the free-image counting semaphore from §4.D: a
// plain condition-variable-backed counter rather than a channel, the
// same choice gviegas-neo3's present.go makes for equivalent
// mutex-guarded bookkeeping rather than reaching for goroutine-per-wait
// channel plumbing.
type countingSemaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

func newCountingSemaphore(initial int) *countingSemaphore {
	s := &countingSemaphore{count: initial}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// wait blocks until the count is positive, or timeout elapses if
// timeout >= 0. A negative timeout blocks indefinitely. A zero timeout
// is a non-blocking poll: it returns NotReady immediately instead of
// waiting out a zero-length deadline, so callers can distinguish "I
// didn't wait at all" from "I waited and it timed out".
func (s *countingSemaphore) wait(timeout time.Duration) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timeout < 0 {
		for s.count == 0 {
			s.cond.Wait()
		}
		s.count--
		return Success
	}

	if timeout == 0 {
		if s.count == 0 {
			return NotReady
		}
		s.count--
		return Success
	}

	deadline := time.Now().Add(timeout)
	for s.count == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Timeout
		}
		s.timedWait(remaining)
		if s.count == 0 && !time.Now().Before(deadline) {
			return Timeout
		}
	}
	s.count--
	return Success
}

// timedWait blocks on the condition variable until either post()
// broadcasts or remaining elapses, whichever comes first. sync.Cond has
// no native timeout, so a timer drives the deadline the way
// pthread_cond_timedwait's timeout argument would.
func (s *countingSemaphore) timedWait(remaining time.Duration) {
	timer := time.AfterFunc(remaining, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()
	s.cond.Wait()
}

func (s *countingSemaphore) post() {
	s.mu.Lock()
	s.count++
	s.cond.Signal()
	s.mu.Unlock()
}

// binarySemaphore is the one-shot "start presenting" signal a
// swapchain's worker posts just before its first page-flip, so that
// its ancestor's Teardown can observe that it has begun presenting
// (§4.E.5).
type binarySemaphore struct {
	mu        sync.Mutex
	cond      *sync.Cond
	signalled bool
}

func newBinarySemaphore() *binarySemaphore {
	s := &binarySemaphore{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *binarySemaphore) wait() {
	s.mu.Lock()
	for !s.signalled {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

func (s *binarySemaphore) post() {
	s.mu.Lock()
	s.signalled = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *binarySemaphore) posted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signalled
}
