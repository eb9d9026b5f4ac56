package shepherd

import (
	"context"

	"github.com/roach88/cubist/internal/execution"
)

// Task is a submitted unit of work.
type Task struct {
	exec *execution.Execution
	done chan struct{}

	value any
	err   error
}

// Execution returns the execution the task runs under.
func (t *Task) Execution() *execution.Execution { return t.exec }

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx ends. Giving up on the wait
// does not cancel the task.
func (t *Task) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Task) finish(v any, err error) {
	t.value, t.err = v, err
	close(t.done)
}
