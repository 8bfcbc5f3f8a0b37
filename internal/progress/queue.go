package progress

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Put on a closed Queue, and by Get once a closed
// Queue has been drained.
var ErrClosed = errors.New("progress: queue closed")

// Queue is an unbounded in-memory Channel.
//
// Put never blocks, so workers are not slowed down while no pickup is
// draining the queue; reports simply accumulate until one is. Any number of
// goroutines may Put concurrently. Get is meant for a single reader.
type Queue struct {
	mu     sync.Mutex
	items  []Report
	closed bool
	ready  chan struct{}
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Put appends r to the queue.
func (q *Queue) Put(r Report) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, r)
	q.mu.Unlock()
	q.signal()
	return nil
}

// Get removes and returns the oldest report, waiting for one if necessary.
func (q *Queue) Get(ctx context.Context) (Report, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			r := q.items[0]
			q.items[0] = Report{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return r, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Report{}, ErrClosed
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			return Report{}, ctx.Err()
		}
	}
}

// Len returns the number of reports waiting to be read.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the queue from accepting reports. Reports already queued can
// still be read.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
