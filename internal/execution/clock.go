package execution

import (
	"sync/atomic"
	"time"
)

// Clock supplies wall time for timeout accounting.
// Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Sequence hands out strictly increasing execution ids.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
type Sequence struct {
	seq atomic.Int64
}

// Next returns the next id. The first call returns 1.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last id handed out without incrementing.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}

// ids numbers every execution of the process.
var ids Sequence
