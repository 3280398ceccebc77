package sequence

import "sync/atomic"

// Sequencer hands out strictly monotonic, never reused identifiers.
// The house uses one for auction ids and one per registry for user
// handles. It is deterministic and replay-safe.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer starting from a given value.
// On fresh start → start = 0
// On replay → start = last replayed value
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next identifier.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued identifier.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset sets the sequencer to a specific value.
// This is ONLY used after snapshot load or WAL replay, and never
// moves the sequencer backwards.
func (s *Sequencer) Reset(v uint64) {
	for {
		cur := s.next.Load()
		if v <= cur {
			return
		}
		if s.next.CompareAndSwap(cur, v) {
			return
		}
	}
}
