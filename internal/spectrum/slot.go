package spectrum

import "sync"

// Slot is a single-entry mailbox between the analysis goroutine and the
// simulation tick. Publish overwrites whatever has not been consumed yet.
type Slot struct {
	mu        sync.Mutex
	frame     *Frame
	fresh     bool
	published uint64
	dropped   uint64
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Publish stores f as the newest frame. The producer must not touch f
// afterwards.
func (s *Slot) Publish(f *Frame) {
	if f == nil {
		return
	}
	s.mu.Lock()
	if s.fresh {
		s.dropped++
	}
	s.frame = f
	s.fresh = true
	s.published++
	s.mu.Unlock()
}

// Pull returns the newest unconsumed frame or nil.
func (s *Slot) Pull() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh {
		return nil
	}
	s.fresh = false
	return s.frame
}

// Stats reports how many frames were published and how many were
// overwritten before anyone pulled them.
func (s *Slot) Stats() (published, dropped uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published, s.dropped
}
