package command

import "sync"

// DefaultCapacity is the queue capacity of the reference deployment.
const DefaultCapacity = 30

// Queue is a bounded FIFO of transmit requests.
//
// Enqueue never blocks and never overwrites: a full queue rejects the new
// request with ErrQueueFull. Only the tick goroutine enqueues and dequeues;
// the mutex exists so status readers on other goroutines see a consistent
// length.
type Queue struct {
	mu    sync.Mutex
	buf   []TransmitRequest
	head  int
	count int
}

// NewQueue creates an empty queue. A capacity below one falls back to
// DefaultCapacity.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Queue{buf: make([]TransmitRequest, capacity)}
}

// Enqueue appends req, or returns ErrQueueFull leaving the queue unchanged.
func (q *Queue) Enqueue(req TransmitRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count >= len(q.buf) {
		return ErrQueueFull
	}
	q.buf[(q.head+q.count)%len(q.buf)] = req
	q.count++
	return nil
}

// Dequeue removes and returns the oldest request. On an empty queue it
// returns false and changes nothing.
func (q *Queue) Dequeue() (TransmitRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return TransmitRequest{}, false
	}
	req := q.buf[q.head]
	q.buf[q.head] = TransmitRequest{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return req, true
}

// Len returns the current occupancy.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the fixed capacity.
func (q *Queue) Cap() int {
	return len(q.buf)
}

// Full reports whether the next Enqueue would be rejected.
func (q *Queue) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count >= len(q.buf)
}
