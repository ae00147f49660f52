package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing identifiers. It backs order ids on
// the ingest path and fill sequence numbers in the outbox.
type Sequencer struct {
	last atomic.Uint64
}

// New returns a sequencer whose first Next is start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next issues the next identifier.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current is the last identifier issued, or the start value.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Reset moves the sequencer so that the next identifier is v+1. Used when an
// outbox is reopened and numbering resumes after its highest key.
func (s *Sequencer) Reset(v uint64) {
	s.last.Store(v)
}
