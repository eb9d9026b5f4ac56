package shepherd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/roach88/cubist/internal/execution"
)

// DefaultInterval is how often running executions are swept for timeouts.
const DefaultInterval = 100 * time.Millisecond

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("shepherd is shut down")

// Shepherd runs executions on a bounded worker pool.
//
// Each submitted function runs on a pool goroutine inside execution.Run,
// so the execution is bound on the goroutine that evaluates. A background
// sweep calls CheckCancelOrTimeout on every running execution, which
// times executions out and cancels their statements even while the
// evaluating goroutine is blocked and not checking.
//
// Thread-safety: all methods are safe for concurrent use.
type Shepherd struct {
	pool     *ants.Pool
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	closed  bool
	running map[int64]*execution.Execution
	tasks   sync.WaitGroup

	stop    chan struct{}
	sweeper sync.WaitGroup
}

// Option configures a Shepherd.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	interval    time.Duration
	nonblocking bool
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithInterval sets the sweep interval. Zero or less disables the
// background sweep; Sweep can still be called directly.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithNonblocking makes Submit fail instead of waiting when every worker
// is busy.
func WithNonblocking() Option {
	return func(o *options) { o.nonblocking = true }
}

// New starts a shepherd with the given number of workers.
func New(workers int, opts ...Option) (*Shepherd, error) {
	o := options{logger: slog.Default(), interval: DefaultInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if workers <= 0 {
		return nil, fmt.Errorf("shepherd: workers must be positive, got %d", workers)
	}

	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(o.nonblocking),
		ants.WithPanicHandler(func(v any) {
			o.logger.Error("shepherd worker panic", "panic", fmt.Sprint(v))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("shepherd: create pool: %w", err)
	}

	s := &Shepherd{
		pool:     pool,
		logger:   o.logger,
		interval: o.interval,
		running:  make(map[int64]*execution.Execution),
		stop:     make(chan struct{}),
	}
	if s.interval > 0 {
		s.sweeper.Add(1)
		go s.sweepLoop()
	}
	return s, nil
}

// Submit runs fn under exec on a worker. ctx is the parent of the bound
// context: canceling it cancels exec. The execution is finished with fn's
// outcome when fn returns; a panic in fn fails it.
//
// If the task cannot be scheduled, exec is failed and the error returned.
func (s *Shepherd) Submit(ctx context.Context, exec *execution.Execution, fn func(ctx context.Context) (any, error)) (*Task, error) {
	t := &Task{exec: exec, done: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		exec.Fail(ErrClosed)
		return nil, ErrClosed
	}
	s.running[exec.ID()] = exec
	s.tasks.Add(1)
	s.mu.Unlock()

	err := s.pool.Submit(func() { s.run(ctx, t, fn) })
	if err != nil {
		s.untrack(exec)
		err = fmt.Errorf("shepherd: submit: %w", err)
		exec.Fail(err)
		t.finish(nil, err)
		return nil, err
	}
	s.logger.Debug("execution submitted", "execution", exec.ID(), "trace", exec.TraceID())
	return t, nil
}

func (s *Shepherd) run(ctx context.Context, t *Task, fn func(ctx context.Context) (any, error)) {
	var (
		value any
		err   error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("execution %d panicked: %v", t.exec.ID(), r)
			s.logger.Error("execution panicked", "execution", t.exec.ID(), "panic", fmt.Sprint(r))
		}
		t.exec.Finish(err)
		s.untrack(t.exec)
		t.finish(value, err)
	}()

	err = execution.Run(ctx, t.exec, func(ctx context.Context) error {
		var ferr error
		value, ferr = fn(ctx)
		return ferr
	})
}

func (s *Shepherd) untrack(exec *execution.Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[exec.ID()]; ok {
		delete(s.running, exec.ID())
		s.tasks.Done()
	}
}

// Running returns a snapshot of the executions currently scheduled.
func (s *Shepherd) Running() []*execution.Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*execution.Execution, 0, len(s.running))
	for _, e := range s.running {
		out = append(out, e)
	}
	return out
}

// Workers reports busy and idle pool workers.
func (s *Shepherd) Workers() (busy, free int) {
	return s.pool.Running(), s.pool.Free()
}

// Sweep checks every running execution once and returns how many of them
// it found stopped (timed out now or canceled earlier).
func (s *Shepherd) Sweep() int {
	stopped := 0
	for _, e := range s.Running() {
		err := e.CheckCancelOrTimeout()
		if err == nil {
			continue
		}
		stopped++
		if execution.IsTimeout(err) {
			s.logger.Info("sweep timed out execution",
				"execution", e.ID(),
				"timeout", e.Timeout(),
				"elapsed", e.Elapsed(),
			)
		}
	}
	return stopped
}

func (s *Shepherd) sweepLoop() {
	defer s.sweeper.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Shutdown stops accepting work and waits for running executions. If ctx
// ends first, every running execution is canceled and ctx's error is
// returned; evaluation that never checks for cancellation keeps its worker
// until it returns.
func (s *Shepherd) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	s.sweeper.Wait()

	idle := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(idle)
	}()

	var err error
	select {
	case <-idle:
	case <-ctx.Done():
		running := s.Running()
		for _, e := range running {
			e.Cancel()
		}
		s.logger.Warn("shutdown canceled running executions", "count", len(running))
		err = ctx.Err()
	}
	s.pool.Release()
	s.logger.Debug("shepherd stopped")
	return err
}
