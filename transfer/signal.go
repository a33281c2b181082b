package transfer

import (
	"sync"
	"sync/atomic"
)

// Signal is a 32-bit word that one side stores into and the other side
// parks on. Zero means "not ready"; any other value wakes the waiter.
type Signal struct {
	mu   sync.Mutex
	cond *sync.Cond
	word atomic.Int32
}

func newSignal() *Signal {
	s := &Signal{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Reset stores zero. Must happen before the request that will be answered
// by the next Store, otherwise a fast answer could be wiped out.
func (s *Signal) Reset() {
	s.mu.Lock()
	s.word.Store(0)
	s.mu.Unlock()
}

// Store publishes v and wakes every waiter.
func (s *Signal) Store(v int32) {
	s.mu.Lock()
	s.word.Store(v)
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Load returns the current word without blocking.
func (s *Signal) Load() int32 {
	return s.word.Load()
}

// Wait parks the calling goroutine until the word is non-zero and returns it.
// The mutex is taken even when the word is already set so buffer writes
// made before Store are visible to the caller.
func (s *Signal) Wait() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if v := s.word.Load(); v != 0 {
			return v
		}
		s.cond.Wait()
	}
}
