package execution_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cubist/internal/execution"
	"github.com/roach88/cubist/internal/testutil"
)

type recordingListener struct {
	mu      sync.Mutex
	started []int64
	ended   map[int64]execution.State
}

func newRecordingListener() *recordingListener {
	return &recordingListener{ended: make(map[int64]execution.State)}
}

func (l *recordingListener) ExecutionStarted(e *execution.Execution) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, e.ID())
}

func (l *recordingListener) ExecutionEnded(e *execution.Execution) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.ended[e.ID()]; dup {
		panic("execution ended twice")
	}
	l.ended[e.ID()] = e.State()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRoot(t *testing.T, clock *testutil.ManualClock, timeout time.Duration, opts ...execution.Option) *execution.Execution {
	t.Helper()
	all := append([]execution.Option{
		execution.WithClock(clock),
		execution.WithLogger(quietLogger()),
	}, opts...)
	return execution.NewRoot(timeout, execution.NewMetadata("test", t.Name(), execution.PurposeOther, 0), all...)
}

func TestNewRoot_TimeoutResolution(t *testing.T) {
	clock := testutil.NewManualClock()

	e := newRoot(t, clock, 2*time.Second)
	assert.Equal(t, 2*time.Second, e.Timeout())

	e = newRoot(t, clock, 0, execution.WithDefaultTimeout(30*time.Second))
	assert.Equal(t, 30*time.Second, e.Timeout())

	e = newRoot(t, clock, 0)
	assert.Equal(t, time.Duration(0), e.Timeout(), "no default means unlimited")
	assert.Equal(t, execution.StateRunning, e.State())
	assert.Nil(t, e.Parent())
	assert.Equal(t, int64(0), e.ParentID())
}

func TestNewRoot_IDsIncrease(t *testing.T) {
	clock := testutil.NewManualClock()
	a := newRoot(t, clock, 0)
	b := newRoot(t, clock, 0)
	c := a.CreateChild(execution.EmptyMetadata, 0)

	assert.Less(t, a.ID(), b.ID())
	assert.Less(t, b.ID(), c.ID())
}

func TestNewRoot_TraceID(t *testing.T) {
	clock := testutil.NewManualClock()
	e := newRoot(t, clock, 0, execution.WithTraceGenerator(execution.NewFixedGenerator("trace-1", "trace-2")))
	child := e.CreateChild(execution.EmptyMetadata, 0)

	assert.Equal(t, "trace-1", e.TraceID())
	assert.Equal(t, "trace-2", child.TraceID())
}

func TestCreateChild_InheritsTimeoutDuration(t *testing.T) {
	clock := testutil.NewManualClock()
	parent := newRoot(t, clock, time.Second)

	// Created late in the parent's life, the child still gets the full
	// duration.
	clock.Advance(900 * time.Millisecond)
	child := parent.CreateChild(execution.EmptyMetadata, 0)
	assert.Equal(t, time.Second, child.Timeout())
	assert.Same(t, parent, child.Parent())
	assert.Same(t, parent, child.Root())

	clock.Advance(500 * time.Millisecond)
	assert.True(t, execution.IsTimeout(parent.CheckCancelOrTimeout()))
	assert.NoError(t, child.CheckCancelOrTimeout(), "child is 500ms into its own 1s budget")

	override := parent.CreateChild(execution.EmptyMetadata, 5*time.Second)
	assert.Equal(t, 5*time.Second, override.Timeout())
}

func TestCreateChild_UnlimitedParent(t *testing.T) {
	clock := testutil.NewManualClock()
	parent := newRoot(t, clock, 0)
	child := parent.CreateChild(execution.EmptyMetadata, 0)

	clock.Advance(24 * time.Hour)
	assert.NoError(t, child.CheckCancelOrTimeout())
}

func TestCheckCancelOrTimeout_Boundary(t *testing.T) {
	clock := testutil.NewManualClock()
	e := newRoot(t, clock, time.Second)

	clock.Advance(time.Second)
	require.NoError(t, e.CheckCancelOrTimeout(), "elapsed equal to timeout is not exceeded")

	clock.Advance(time.Nanosecond)
	err := e.CheckCancelOrTimeout()
	require.Error(t, err)
	assert.True(t, execution.IsTimeout(err))
	assert.Equal(t, execution.ErrCodeTimeout, execution.CodeOf(err))
	assert.Equal(t, execution.StateTimeout, e.State())

	var ee *execution.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, e.ID(), ee.ExecutionID)
	assert.Equal(t, time.Second, ee.Timeout)
}

func TestTimeout_IsSticky(t *testing.T) {
	clock := testutil.NewManualClock()
	stmt := testutil.NewMockStatement()
	e := newRoot(t, clock, time.Second)
	e.RegisterStatement(stmt)

	clock.Advance(2 * time.Second)
	for i := 0; i < 5; i++ {
		assert.True(t, execution.IsTimeout(e.CheckCancelOrTimeout()))
	}
	assert.Equal(t, 1, stmt.Canceled(), "statements canceled once on the transition")

	// No way out of a terminal state.
	e.Cancel()
	e.End()
	e.Fail(errors.New("late"))
	assert.Equal(t, execution.StateTimeout, e.State())
	assert.True(t, execution.IsTimeout(e.CheckCancelOrTimeout()))
	assert.Equal(t, 1, stmt.Canceled())
}

func TestCancel_FanOutOnce(t *testing.T) {
	clock := testutil.NewManualClock()
	e := newRoot(t, clock, 0)
	stmts := []*testutil.MockStatement{
		testutil.NewMockStatement(),
		testutil.NewMockStatement(),
		testutil.NewMockStatement(),
	}
	for _, s := range stmts {
		e.RegisterStatement(s)
	}

	e.Cancel()
	e.Cancel()

	assert.Equal(t, execution.StateCanceled, e.State())
	for i, s := range stmts {
		assert.Equal(t, 1, s.Canceled(), "statement %d", i)
	}
	err := e.CheckCancelOrTimeout()
	assert.True(t, execution.IsCanceled(err))
	assert.False(t, execution.IsTimeout(err))
}

func TestCancel_ConcurrentCallersFanOutOnce(t *testing.T) {
	clock := testutil.NewManualClock()
	e := newRoot(t, clock, 0)
	stmt := testutil.NewMockStatement()
	e.RegisterStatement(stmt)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Cancel()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, stmt.Canceled())
}

func TestCancel_FailingStatementDoesNotStopOthers(t *testing.T) {
	clock := testutil.NewManualClock()
	e := newRoot(t, clock, 0)
	failing := testutil.NewMockStatement().FailCancel()
	panicking := testutil.NewMockStatement().PanicOnCancel()
	ok := testutil.NewMockStatement()
	e.RegisterStatement(failing)
	e.RegisterStatement(panicking)
	e.RegisterStatement(ok)

	assert.NotPanics(t, e.Cancel)

	assert.Equal(t, 1, failing.Canceled())
	assert.Equal(t, 1, panicking.Canceled())
	assert.Equal(t, 1, ok.Canceled())
	assert.Equal(t, execution.StateCanceled, e.State())
}

func TestRegisterStatement_AfterCancelIsCanceledImmediately(t *testing.T) {
	clock := testutil.NewManualClock()
	e := newRoot(t, clock, 0)
	e.Cancel()

	late := testutil.NewMockStatement()
	e.RegisterStatement(late)

	assert.Equal(t, 1, late.Canceled())
	assert.Len(t, e.Statements(), 1)
}

func TestEnd_DoesNotCancelStatements(t *testing.T) {
	clock := testutil.NewManualClock()
	e := newRoot(t, clock, time.Second)
	stmt := testutil.NewMockStatement()
	e.RegisterStatement(stmt)

	e.End()
	e.Cancel()
	clock.Advance(time.Hour)

	assert.Equal(t, execution.StateDone, e.State())
	assert.NoError(t, e.CheckCancelOrTimeout())
	assert.Equal(t, 0, stmt.Canceled())
}

func TestFail_RecordsCause(t *testing.T) {
	clock := testutil.NewManualClock()
	e := newRoot(t, clock, 0)
	cause := errors.New("division exploded")

	e.Fail(cause)

	assert.Equal(t, execution.StateError, e.State())
	assert.Same(t, cause, e.Err())
	err := e.CheckCancelOrTimeout()
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, execution.ErrFailed)
	assert.Contains(t, err.Error(), "division exploded")
}

func TestFinish(t *testing.T) {
	clock := testutil.NewManualClock()

	t.Run("nil ends", func(t *testing.T) {
		e := newRoot(t, clock, 0)
		e.Finish(nil)
		assert.Equal(t, execution.StateDone, e.State())
	})

	t.Run("failure fails", func(t *testing.T) {
		e := newRoot(t, clock, 0)
		e.Finish(errors.New("boom"))
		assert.Equal(t, execution.StateError, e.State())
	})

	t.Run("cancel signal keeps canceled state", func(t *testing.T) {
		e := newRoot(t, clock, 0)
		e.Cancel()
		e.Finish(e.CheckCancelOrTimeout())
		assert.Equal(t, execution.StateCanceled, e.State())
	})

	t.Run("timeout signal from a child fails a running parent", func(t *testing.T) {
		parent := newRoot(t, clock, 0)
		child := parent.CreateChild(execution.EmptyMetadata, time.Millisecond)
		clock.Advance(time.Second)
		parent.Finish(child.CheckCancelOrTimeout())
		assert.Equal(t, execution.StateError, parent.State())
		assert.True(t, execution.IsTimeout(parent.Err()))
	})
}

func TestListener_StartAndEndOnce(t *testing.T) {
	clock := testutil.NewManualClock()
	l := newRecordingListener()
	e := newRoot(t, clock, time.Second, execution.WithListener(l))
	child := e.CreateChild(execution.EmptyMetadata, 0)

	clock.Advance(2 * time.Second)
	_ = e.CheckCancelOrTimeout()
	_ = e.CheckCancelOrTimeout()
	e.Cancel()
	child.End()

	assert.Equal(t, []int64{e.ID(), child.ID()}, l.started)
	assert.Equal(t, map[int64]execution.State{
		e.ID():     execution.StateTimeout,
		child.ID(): execution.StateDone,
	}, l.ended)
}

func TestElapsed_FrozenAtTransition(t *testing.T) {
	clock := testutil.NewManualClock()
	e := newRoot(t, clock, 0)

	clock.Advance(3 * time.Second)
	e.End()
	clock.Advance(time.Hour)

	assert.Equal(t, 3*time.Second, e.Elapsed())
	assert.Equal(t, testutil.Epoch, e.StartTime())
}

func TestTimeoutAndCancelRace_SingleOutcome(t *testing.T) {
	for i := 0; i < 50; i++ {
		clock := testutil.NewManualClock()
		e := newRoot(t, clock, time.Millisecond)
		stmt := testutil.NewMockStatement()
		e.RegisterStatement(stmt)
		clock.Advance(time.Second)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = e.CheckCancelOrTimeout()
		}()
		go func() {
			defer wg.Done()
			e.Cancel()
		}()
		wg.Wait()

		final := e.State()
		require.Contains(t, []execution.State{execution.StateCanceled, execution.StateTimeout}, final)
		err := e.CheckCancelOrTimeout()
		if final == execution.StateCanceled {
			assert.True(t, execution.IsCanceled(err))
		} else {
			assert.True(t, execution.IsTimeout(err))
		}
		assert.Equal(t, 1, stmt.Canceled())
	}
}

func TestFailAndCancelRace_CauseOnlyOnError(t *testing.T) {
	for i := 0; i < 200; i++ {
		e := newRoot(t, testutil.NewManualClock(), 0)
		cause := errors.New("boom")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.Fail(cause)
		}()
		go func() {
			defer wg.Done()
			e.Cancel()
		}()
		wg.Wait()

		switch e.State() {
		case execution.StateError:
			assert.Same(t, cause, e.Err())
		case execution.StateCanceled:
			assert.NoError(t, e.Err(), "a canceled execution carries no failure")
		default:
			t.Fatalf("unexpected state %s", e.State())
		}
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "RUNNING", execution.StateRunning.String())
	assert.Equal(t, "CANCELED", execution.StateCanceled.String())
	assert.Equal(t, "TIMEOUT", execution.StateTimeout.String())
	assert.Equal(t, "ERROR", execution.StateError.String())
	assert.Equal(t, "DONE", execution.StateDone.String())
	assert.False(t, execution.StateRunning.IsTerminal())
	assert.True(t, execution.StateDone.IsTerminal())
}

func TestMetadata_String(t *testing.T) {
	md := execution.NewMetadata("compiler", "set construction", "", 3)
	assert.Equal(t, execution.PurposeOther, md.Purpose)
	assert.Equal(t, "compiler: set construction (purpose=other, count=3)", md.String())
	assert.Equal(t, "other", execution.EmptyMetadata.String())
}

func TestRun_BindsCurrent(t *testing.T) {
	clock := testutil.NewManualClock()
	e := newRoot(t, clock, 0)

	_, err := execution.Current(context.Background())
	require.Error(t, err)
	assert.True(t, execution.IsNoExecution(err))
	assert.Equal(t, execution.ErrCodeNoExecution, execution.CodeOf(err))

	var escaped context.Context
	err = execution.Run(context.Background(), e, func(ctx context.Context) error {
		got, err := execution.Current(ctx)
		require.NoError(t, err)
		assert.Same(t, e, got)
		assert.Same(t, e, execution.MustCurrent(ctx))
		assert.NoError(t, execution.CheckCancelOrTimeout(ctx))
		escaped = ctx
		return nil
	})
	require.NoError(t, err)

	_, err = execution.Current(escaped)
	assert.True(t, execution.IsNoExecution(err), "binding released when Run returns")
	assert.Panics(t, func() { execution.MustCurrent(escaped) })
	assert.True(t, execution.IsNoExecution(execution.CheckCancelOrTimeout(context.Background())))
}

func TestRun_ReturnsFnError(t *testing.T) {
	clock := testutil.NewManualClock()
	e := newRoot(t, clock, 0)
	boom := errors.New("boom")

	err := execution.Run(context.Background(), e, func(context.Context) error { return boom })
	assert.Same(t, boom, err)
	assert.Equal(t, execution.StateRunning, e.State(), "Run leaves the terminal transition to the caller")
}

func TestRun_CancelClosesScopedContext(t *testing.T) {
	clock := testutil.NewManualClock()
	e := newRoot(t, clock, 0)

	err := execution.Run(context.Background(), e, func(ctx context.Context) error {
		e.Cancel()
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("scoped context not canceled")
		}
		return execution.CheckCancelOrTimeout(ctx)
	})
	assert.True(t, execution.IsCanceled(err))
}

func TestRun_ParentContextCancelsExecution(t *testing.T) {
	clock := testutil.NewManualClock()
	e := newRoot(t, clock, 0)
	parent, cancel := context.WithCancel(context.Background())

	err := execution.Run(parent, e, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		require.Eventually(t, func() bool {
			return e.State() == execution.StateCanceled
		}, 5*time.Second, time.Millisecond)
		return execution.CheckCancelOrTimeout(ctx)
	})
	assert.True(t, execution.IsCanceled(err))
}

func TestRun_NestedBindingsRestore(t *testing.T) {
	clock := testutil.NewManualClock()
	outer := newRoot(t, clock, 0)
	inner := outer.CreateChild(execution.EmptyMetadata, 0)

	_ = execution.Run(context.Background(), outer, func(ctx context.Context) error {
		_ = execution.Run(ctx, inner, func(ctx context.Context) error {
			assert.Same(t, inner, execution.MustCurrent(ctx))
			return nil
		})
		assert.Same(t, outer, execution.MustCurrent(ctx))
		return nil
	})
}

func TestRun_RepeatedBindingsDoNotAccumulate(t *testing.T) {
	e := newRoot(t, testutil.NewManualClock(), 0)
	stmt := testutil.NewMockStatement()
	e.RegisterStatement(stmt)

	for i := 0; i < 5; i++ {
		err := execution.Run(context.Background(), e, func(context.Context) error { return nil })
		require.NoError(t, err)
	}
	assert.Len(t, e.Statements(), 1, "bindings are not registered statements")

	err := execution.Run(context.Background(), e, func(ctx context.Context) error {
		e.Cancel()
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("live scoped context not canceled")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stmt.Canceled())
	assert.Len(t, e.Statements(), 1)
}

func TestRun_AfterCancelStartsCanceled(t *testing.T) {
	e := newRoot(t, testutil.NewManualClock(), 0)
	e.Cancel()

	err := execution.Run(context.Background(), e, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
		default:
			t.Fatal("scoped context of a canceled execution is live")
		}
		return execution.CheckCancelOrTimeout(ctx)
	})
	assert.True(t, execution.IsCanceled(err))
}
