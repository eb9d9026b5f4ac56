package monitor

import "sync"

// recordQueue is a bounded FIFO between execution listeners and the store
// writer.
//
// Enqueue never blocks: listeners run on the goroutine that moved the
// execution, often an evaluating worker. When the queue is full the record
// is dropped and counted instead.
type recordQueue struct {
	mu      sync.Mutex
	records []Record
	limit   int
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newRecordQueue(limit int) *recordQueue {
	return &recordQueue{
		records: make([]Record, 0, 64),
		limit:   limit,
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds r to the back of the queue. It returns false if the queue
// is closed or full.
func (q *recordQueue) Enqueue(r Record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || (q.limit > 0 && len(q.records) >= q.limit) {
		return false
	}
	q.records = append(q.records, r)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front record without blocking.
func (q *recordQueue) TryDequeue() (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.records) == 0 {
		return Record{}, false
	}
	r := q.records[0]
	q.records[0] = Record{}
	if len(q.records) == 1 {
		q.records = q.records[:0]
	} else {
		q.records = q.records[1:]
	}
	return r, true
}

// Wait returns a channel that signals when records may be available. It
// is closed by Close.
func (q *recordQueue) Wait() <-chan struct{} {
	return q.signal
}

// Drained reports whether the queue is closed and empty.
func (q *recordQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.records) == 0
}

func (q *recordQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Close stops further enqueues and wakes the writer.
func (q *recordQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
