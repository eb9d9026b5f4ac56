package execution

import (
	"context"
	"sync/atomic"
)

type bindingKey struct{}

// binding ties an execution to the contexts derived inside one Run call.
// released flips when Run returns, so a context that escapes the scope no
// longer resolves to the execution.
type binding struct {
	exec     *Execution
	released atomic.Bool
}

// Run binds e to a context derived from ctx and calls fn with it.
//
// Inside fn, Current returns e. Canceling ctx cancels e; canceling e
// (explicitly, by timeout, or by failure) cancels the derived context so
// blocking calls made with it return promptly. The binding is released
// when Run returns, including when fn panics.
//
// Run does not end e: the caller owns the terminal transition, usually via
// Finish with the returned error.
func Run(ctx context.Context, e *Execution, fn func(ctx context.Context) error) error {
	b := &binding{exec: e}
	defer b.released.Store(true)

	scoped, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, e.Cancel)
	defer stop()

	release := e.bind(b, cancel)
	defer release()

	return fn(context.WithValue(scoped, bindingKey{}, b))
}

// Current returns the execution bound to ctx. It fails with a
// NO_EXECUTION_BOUND error outside of Run, or after the Run call that bound
// it has returned.
func Current(ctx context.Context) (*Execution, error) {
	if ctx == nil {
		return nil, newNoExecutionError()
	}
	b, ok := ctx.Value(bindingKey{}).(*binding)
	if !ok || b.released.Load() {
		return nil, newNoExecutionError()
	}
	return b.exec, nil
}

// MustCurrent is Current for call sites where a missing binding is a
// programming error.
func MustCurrent(ctx context.Context) *Execution {
	e, err := Current(ctx)
	if err != nil {
		panic(err)
	}
	return e
}

// CheckCancelOrTimeout runs the checkpoint of the execution bound to ctx.
func CheckCancelOrTimeout(ctx context.Context) error {
	e, err := Current(ctx)
	if err != nil {
		return err
	}
	return e.CheckCancelOrTimeout()
}
