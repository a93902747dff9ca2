package journal

import "sync/atomic"

// Clock hands out strictly increasing sequence numbers.
type Clock interface {
	Next() int64
}

// SeqClock is the default Clock. It is safe for concurrent use.
type SeqClock struct {
	seq atomic.Int64
}

// NewSeqClock returns a clock whose first Next is start+1.
func NewSeqClock(start int64) *SeqClock {
	c := &SeqClock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *SeqClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *SeqClock) Current() int64 {
	return c.seq.Load()
}
