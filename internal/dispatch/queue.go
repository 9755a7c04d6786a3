package dispatch

import (
	"sync"

	"base-launch-radar/internal/domain"
)

// candidateQueue is a bounded FIFO that drops the oldest waiting candidate
// when full. Dropping is bounded: the discoverer's cursor only advances
// after Push accepted the batch, so nothing is silently lost beyond the cap.
type candidateQueue struct {
	mu     sync.Mutex
	items  []*domain.PairCandidate
	cap    int
	notify chan struct{}
	closed bool
}

func newCandidateQueue(cap int) *candidateQueue {
	return &candidateQueue{
		cap:    cap,
		notify: make(chan struct{}, 1),
	}
}

// Push enqueues a candidate. When the queue is full the oldest waiting
// candidate is evicted and returned as dropped. Push on a closed queue
// reports ok=false.
func (q *candidateQueue) Push(c *domain.PairCandidate) (dropped *domain.PairCandidate, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, false
	}

	if len(q.items) >= q.cap {
		dropped = q.items[0]
		q.items = q.items[1:]
	}
	q.items = append(q.items, c)

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return dropped, true
}

// Pop dequeues the oldest candidate, nil when empty. The notify token holds
// at most one wakeup, so a popper re-arms it while work remains; each woken
// worker then wakes the next until the queue is empty.
func (q *candidateQueue) Pop() *domain.PairCandidate {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	c := q.items[0]
	q.items = q.items[1:]

	if len(q.items) > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return c
}

// Wait returns a channel that fires when new work may be available.
func (q *candidateQueue) Wait() <-chan struct{} {
	return q.notify
}

// Len returns the number of waiting candidates.
func (q *candidateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects future pushes. Waiting items remain poppable for drain.
func (q *candidateQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
