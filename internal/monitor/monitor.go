package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/cubist/internal/execution"
)

// DefaultQueueSize bounds the records waiting for the store writer.
const DefaultQueueSize = 4096

// Record is one row of the execution log. A started execution is written
// with state RUNNING; its end rewrites state, elapsed and error.
type Record struct {
	ExecutionID int64
	ParentID    int64
	TraceID     string
	Component   string
	Message     string
	Purpose     string
	Count       int
	State       string
	Timeout     time.Duration
	Started     time.Time
	Elapsed     time.Duration
	Error       string
}

// NewRecord snapshots e.
func NewRecord(e *execution.Execution) Record {
	md := e.Metadata()
	r := Record{
		ExecutionID: e.ID(),
		ParentID:    e.ParentID(),
		TraceID:     e.TraceID(),
		Component:   md.Component,
		Message:     md.Message,
		Purpose:     string(md.Purpose),
		Count:       md.Count,
		State:       e.State().String(),
		Timeout:     e.Timeout(),
		Started:     e.StartTime(),
	}
	if e.State().IsTerminal() {
		r.Elapsed = e.Elapsed()
	}
	if err := e.Err(); err != nil {
		r.Error = err.Error()
	}
	return r
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithMetrics updates m on every lifecycle event.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Monitor) { m.metrics = metrics }
}

// WithStore writes every lifecycle event to s. The monitor does not own s.
func WithStore(s *Store) Option {
	return func(m *Monitor) { m.store = s }
}

// WithQueueSize bounds the records waiting to be written.
func WithQueueSize(n int) Option {
	return func(m *Monitor) { m.queueSize = n }
}

// Monitor is an execution.Listener that keeps metrics and an execution log.
//
// Listener callbacks only update in-memory collectors and enqueue; a single
// writer goroutine drains the queue into the store.
type Monitor struct {
	logger    *slog.Logger
	metrics   *Metrics
	store     *Store
	queueSize int

	queue *recordQueue
	done  chan struct{}
	once  sync.Once
	errMu sync.Mutex
	errs  []error
}

var _ execution.Listener = (*Monitor)(nil)

// New creates a monitor and starts its writer.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		logger:    slog.Default(),
		queueSize: DefaultQueueSize,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.queue = newRecordQueue(m.queueSize)
	go m.write()
	return m
}

// ExecutionStarted implements execution.Listener.
func (m *Monitor) ExecutionStarted(e *execution.Execution) {
	if m.metrics != nil {
		m.metrics.Running.Inc()
	}
	m.enqueue(NewRecord(e))
}

// ExecutionEnded implements execution.Listener.
func (m *Monitor) ExecutionEnded(e *execution.Execution) {
	r := NewRecord(e)
	if m.metrics != nil {
		m.metrics.Running.Dec()
		m.metrics.Executions.WithLabelValues(r.Purpose, r.State).Inc()
		m.metrics.Duration.WithLabelValues(r.Purpose).Observe(r.Elapsed.Seconds())
	}
	m.logger.Info("execution finished",
		"execution", r.ExecutionID,
		"trace", r.TraceID,
		"purpose", r.Purpose,
		"state", r.State,
		"elapsed", r.Elapsed,
	)
	m.enqueue(r)
}

func (m *Monitor) enqueue(r Record) {
	if m.store == nil {
		return
	}
	if !m.queue.Enqueue(r) {
		if m.metrics != nil {
			m.metrics.Dropped.Inc()
		}
		m.logger.Warn("execution log record dropped",
			"execution", r.ExecutionID,
			"state", r.State,
		)
	}
}

// write is the single store writer. Write failures are logged and kept
// for Close; they never reach the executions.
func (m *Monitor) write() {
	defer close(m.done)
	for {
		if r, ok := m.queue.TryDequeue(); ok {
			if m.store != nil {
				if err := m.store.Write(context.Background(), r); err != nil {
					m.logger.Error("execution log write failed",
						"execution", r.ExecutionID,
						"error", err,
					)
					m.errMu.Lock()
					m.errs = append(m.errs, err)
					m.errMu.Unlock()
				}
			}
			continue
		}
		if m.queue.Drained() {
			return
		}
		<-m.queue.Wait()
	}
}

// Close stops accepting records, waits until queued ones are written and
// returns any write errors.
func (m *Monitor) Close() error {
	m.once.Do(m.queue.Close)
	<-m.done

	m.errMu.Lock()
	defer m.errMu.Unlock()
	return errors.Join(m.errs...)
}
