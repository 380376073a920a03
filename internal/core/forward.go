package core

import "errors"

// ErrForwardQueueFull is returned by ForwardQueue.Enqueue when the bounded
// FIFO is at capacity.
var ErrForwardQueueFull = errors.New("core: forward queue full")

// ForwardQueue is a bounded FIFO of pending relays. At most one entry may
// be dequeued per cycle; the scheduler enforces that cadence, not the
// queue itself.
type ForwardQueue struct {
	entries [ForwardQueueSize]ForwardEntry
	head    int
	count   int
}

// NewForwardQueue constructs an empty bounded FIFO.
func NewForwardQueue() *ForwardQueue {
	return &ForwardQueue{}
}

// Len returns the number of entries currently queued.
func (q *ForwardQueue) Len() int { return q.count }

// Enqueue appends e to the tail of the queue. Returns ErrForwardQueueFull
// if the queue is at capacity; existing entries are never evicted to make
// room.
func (q *ForwardQueue) Enqueue(e ForwardEntry) error {
	if q.count >= ForwardQueueSize {
		return ErrForwardQueueFull
	}
	tail := (q.head + q.count) % ForwardQueueSize
	q.entries[tail] = e
	q.count++
	return nil
}

// Dequeue removes and returns the oldest queued entry.
func (q *ForwardQueue) Dequeue() (ForwardEntry, bool) {
	if q.count == 0 {
		return ForwardEntry{}, false
	}
	e := q.entries[q.head]
	q.head = (q.head + 1) % ForwardQueueSize
	q.count--
	return e, true
}

// Reset empties the queue, used by the pause/resume control command.
func (q *ForwardQueue) Reset() {
	q.head = 0
	q.count = 0
}

// ContainsNode reports whether id already appears in e.Path[0:e.HopsSoFar],
// i.e. whether relaying e would create a loop.
func ContainsNode(e *ForwardEntry, id uint16) bool {
	for i := uint8(0); i < e.HopsSoFar && int(i) < len(e.Path); i++ {
		if e.Path[i] == id {
			return true
		}
	}
	return false
}
