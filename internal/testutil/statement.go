package testutil

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrCancelRefused is returned by a MockStatement built with FailCancel.
var ErrCancelRefused = errors.New("mock statement refused to cancel")

// MockStatement records how often it was canceled.
//
// Thread-safety: Safe for concurrent use; cancels may arrive from a
// watchdog goroutine while the test inspects the count.
type MockStatement struct {
	canceled atomic.Int32
	fail     bool
	panics   bool

	once sync.Once
	done chan struct{}
}

// NewMockStatement creates a statement whose Cancel succeeds.
func NewMockStatement() *MockStatement {
	return &MockStatement{done: make(chan struct{})}
}

// FailCancel makes Cancel return ErrCancelRefused after counting the call.
func (s *MockStatement) FailCancel() *MockStatement {
	s.fail = true
	return s
}

// PanicOnCancel makes Cancel panic after counting the call.
func (s *MockStatement) PanicOnCancel() *MockStatement {
	s.panics = true
	return s
}

// Cancel implements execution.Statement.
func (s *MockStatement) Cancel() error {
	s.canceled.Add(1)
	s.once.Do(func() { close(s.done) })
	if s.panics {
		panic("mock statement cancel")
	}
	if s.fail {
		return ErrCancelRefused
	}
	return nil
}

// Canceled returns the number of Cancel calls.
func (s *MockStatement) Canceled() int {
	return int(s.canceled.Load())
}

// Done is closed on the first Cancel call.
func (s *MockStatement) Done() <-chan struct{} {
	return s.done
}
