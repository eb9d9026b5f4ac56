package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Statement is a native resource opened on behalf of an execution, such as
// a SQL statement or a remote request. Cancel must be safe to call from a
// goroutine other than the one using the resource.
type Statement interface {
	Cancel() error
}

// StatementFunc adapts a function to the Statement interface.
type StatementFunc func() error

// Cancel implements Statement.
func (f StatementFunc) Cancel() error { return f() }

// Listener observes execution lifecycles. Both callbacks are invoked
// exactly once per execution, synchronously, from the goroutine that
// performed the transition; implementations must not block.
type Listener interface {
	ExecutionStarted(e *Execution)
	ExecutionEnded(e *Execution)
}

// Option configures a root execution. Children inherit the options of
// their parent.
type Option func(*options)

type options struct {
	clock          Clock
	logger         *slog.Logger
	listener       Listener
	traces         TraceGenerator
	defaultTimeout time.Duration
}

// WithClock sets the clock used for timeout accounting.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithListener registers a lifecycle listener.
func WithListener(l Listener) Option {
	return func(o *options) { o.listener = l }
}

// WithTraceGenerator sets the trace id generator.
func WithTraceGenerator(g TraceGenerator) Option {
	return func(o *options) { o.traces = g }
}

// WithDefaultTimeout sets the timeout used when NewRoot is given none.
// Zero means unlimited.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) { o.defaultTimeout = d }
}

// Execution is one trackable, cancelable, time-bounded run.
//
// Thread-safety model:
//   - state: atomic, written only by compare-and-set out of RUNNING
//   - statements: append-only under mu
//   - bindings: cancel hooks of live Run scopes under mu
//   - everything else: immutable after construction
type Execution struct {
	id       int64
	traceID  string
	parent   *Execution
	start    time.Time
	timeout  time.Duration
	metadata Metadata
	opts     options

	state   atomic.Int32
	ended   atomic.Int64 // unix nanos of the terminal transition
	failure atomic.Pointer[error]

	mu         sync.Mutex
	statements []Statement
	bindings   map[*binding]context.CancelFunc
}

// NewRoot starts a root execution.
//
// A timeout of zero falls back to the configured default; a zero default
// means the execution never times out.
func NewRoot(timeout time.Duration, md Metadata, opts ...Option) *Execution {
	o := options{
		clock:  SystemClock{},
		logger: slog.Default(),
		traces: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if timeout <= 0 {
		timeout = o.defaultTimeout
	}
	return start(nil, timeout, md, o)
}

// CreateChild starts a child execution owned by the caller.
//
// With timeoutOverride zero the child copies the parent's timeout duration.
// It does not inherit the parent's remaining budget: a child created late
// in a long run gets a full timeout of its own.
func (e *Execution) CreateChild(md Metadata, timeoutOverride time.Duration) *Execution {
	timeout := timeoutOverride
	if timeout <= 0 {
		timeout = e.timeout
	}
	return start(e, timeout, md, e.opts)
}

func start(parent *Execution, timeout time.Duration, md Metadata, o options) *Execution {
	if timeout < 0 {
		timeout = 0
	}
	e := &Execution{
		id:       ids.Next(),
		traceID:  o.traces.Generate(),
		parent:   parent,
		start:    o.clock.Now(),
		timeout:  timeout,
		metadata: md,
		opts:     o,
	}
	e.state.Store(int32(StateRunning))

	o.logger.Debug("execution started",
		"execution", e.id,
		"parent", e.ParentID(),
		"trace", e.traceID,
		"timeout", timeout,
		"component", md.Component,
		"purpose", md.Purpose,
	)
	if o.listener != nil {
		o.listener.ExecutionStarted(e)
	}
	return e
}

// ID returns the process-unique, monotonically increasing id.
func (e *Execution) ID() int64 { return e.id }

// TraceID returns the correlation id.
func (e *Execution) TraceID() string { return e.traceID }

// Parent returns the parent execution, or nil for a root.
func (e *Execution) Parent() *Execution { return e.parent }

// ParentID returns the parent's id, or 0 for a root.
func (e *Execution) ParentID() int64 {
	if e.parent == nil {
		return 0
	}
	return e.parent.id
}

// Root returns the root of the execution tree.
func (e *Execution) Root() *Execution {
	r := e
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// StartTime returns when the execution was created.
func (e *Execution) StartTime() time.Time { return e.start }

// Timeout returns the effective timeout; zero means unlimited.
func (e *Execution) Timeout() time.Duration { return e.timeout }

// Metadata returns the observability payload.
func (e *Execution) Metadata() Metadata { return e.metadata }

// State returns the current state.
func (e *Execution) State() State { return State(e.state.Load()) }

// Elapsed returns the run time so far, or the total run time once terminal.
func (e *Execution) Elapsed() time.Duration {
	if end := e.ended.Load(); end != 0 {
		return time.Unix(0, end).Sub(e.start)
	}
	return e.opts.clock.Now().Sub(e.start)
}

// Err returns the failure recorded by Fail, or nil.
func (e *Execution) Err() error {
	if p := e.failure.Load(); p != nil {
		return *p
	}
	return nil
}

// CheckCancelOrTimeout is the checkpoint called from evaluation loops.
//
// Once the execution is CANCELED, TIMEOUT or ERROR every call returns the
// matching error. While RUNNING it compares elapsed time with the timeout;
// the first caller to see it exceeded moves the execution to TIMEOUT and
// cancels the registered statements.
func (e *Execution) CheckCancelOrTimeout() error {
	switch State(e.state.Load()) {
	case StateRunning:
	case StateDone:
		return nil
	default:
		return e.terminalError()
	}

	if e.timeout <= 0 {
		return nil
	}
	if e.opts.clock.Now().Sub(e.start) <= e.timeout {
		return nil
	}
	e.transition(StateTimeout, nil)
	// Whoever won the race decides the signal; a concurrent Cancel may
	// have got there first.
	return e.terminalError()
}

// Cancel moves a running execution to CANCELED and cancels its statements.
// Calling Cancel again, or on an execution that already ended, does nothing.
func (e *Execution) Cancel() {
	e.transition(StateCanceled, nil)
}

// Fail moves a running execution to ERROR, recording err.
func (e *Execution) Fail(err error) {
	if err == nil {
		err = ErrFailed
	}
	e.transition(StateError, err)
}

// End moves a running execution to DONE.
func (e *Execution) End() {
	e.transition(StateDone, nil)
}

// Finish records the outcome of a run: nil ends the execution, a cancel or
// timeout signal leaves the already-terminal state alone, and any other
// error fails it.
func (e *Execution) Finish(err error) {
	switch {
	case err == nil:
		e.End()
	case IsCanceled(err), IsTimeout(err):
		if e.State() == StateRunning {
			e.Fail(err)
		}
	default:
		e.Fail(err)
	}
}

func (e *Execution) transition(to State, cause error) bool {
	stored := false
	if cause != nil {
		// Stored before the CAS so a reader that observes ERROR sees it.
		if State(e.state.Load()) != StateRunning {
			return false
		}
		stored = e.failure.CompareAndSwap(nil, &cause)
	}
	if !e.state.CompareAndSwap(int32(StateRunning), int32(to)) {
		if stored {
			e.failure.CompareAndSwap(&cause, nil)
		}
		return false
	}
	e.ended.Store(e.opts.clock.Now().UnixNano())

	if to != StateDone {
		e.cancelBindings()
		e.cancelStatements()
	}

	level := slog.LevelDebug
	if to == StateTimeout || to == StateError {
		level = slog.LevelWarn
	}
	e.opts.logger.Log(context.Background(), level, "execution ended",
		"execution", e.id,
		"state", to.String(),
		"elapsed", e.Elapsed(),
		"timeout", e.timeout,
	)
	if e.opts.listener != nil {
		e.opts.listener.ExecutionEnded(e)
	}
	return true
}

// RegisterStatement attaches a native resource to the execution. The list
// is append-only; statements live as long as the execution. A statement
// registered after the execution was canceled, timed out or failed is
// canceled immediately.
func (e *Execution) RegisterStatement(s Statement) {
	e.mu.Lock()
	e.statements = append(e.statements, s)
	e.mu.Unlock()

	switch e.State() {
	case StateCanceled, StateTimeout, StateError:
		e.cancelStatement(s)
	}
}

// Statements returns a snapshot of the registered statements.
func (e *Execution) Statements() []Statement {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Statement, len(e.statements))
	copy(out, e.statements)
	return out
}

// bind records the cancel hook of a Run scope until the returned release
// is called. A scope opened on an execution that was already canceled,
// timed out or failed is canceled at once.
func (e *Execution) bind(b *binding, cancel context.CancelFunc) (release func()) {
	e.mu.Lock()
	if e.bindings == nil {
		e.bindings = make(map[*binding]context.CancelFunc)
	}
	e.bindings[b] = cancel
	e.mu.Unlock()

	switch e.State() {
	case StateCanceled, StateTimeout, StateError:
		cancel()
	}
	return func() {
		e.mu.Lock()
		delete(e.bindings, b)
		e.mu.Unlock()
	}
}

func (e *Execution) cancelBindings() {
	e.mu.Lock()
	hooks := make([]context.CancelFunc, 0, len(e.bindings))
	for _, cancel := range e.bindings {
		hooks = append(hooks, cancel)
	}
	e.mu.Unlock()
	for _, cancel := range hooks {
		cancel()
	}
}

// cancelStatements cancels every registered statement. Failures are logged
// and swallowed so one bad resource cannot stop the others from being
// canceled.
func (e *Execution) cancelStatements() {
	for _, s := range e.Statements() {
		e.cancelStatement(s)
	}
}

func (e *Execution) cancelStatement(s Statement) {
	defer func() {
		if r := recover(); r != nil {
			e.opts.logger.Warn("statement cancel panicked",
				"execution", e.id,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	if err := s.Cancel(); err != nil {
		e.opts.logger.Warn("statement cancel failed",
			"execution", e.id,
			"error", err,
		)
	}
}

func (e *Execution) terminalError() error {
	base := &ExecutionError{
		ExecutionID: e.id,
		Timeout:     e.timeout,
		Elapsed:     e.Elapsed(),
	}
	switch e.State() {
	case StateCanceled:
		base.Code = ErrCodeCanceled
		base.Message = "query canceled"
	case StateTimeout:
		base.Code = ErrCodeTimeout
		base.Message = fmt.Sprintf("query timed out after %s", e.timeout)
	case StateError:
		base.Code = ErrCodeFailed
		base.Message = "execution failed"
		base.Cause = e.Err()
	default:
		return nil
	}
	return base
}

func (e *Execution) String() string {
	return fmt.Sprintf("Execution{id=%d, state=%s, %s}", e.id, e.State(), e.metadata)
}
