package capture

import "sync"

// DefaultQueueSize bounds the number of clicks buffered between the
// capture reader and the controller loop.
const DefaultQueueSize = 1024

// Queue is a fixed-capacity FIFO of click events. When full, the oldest
// event is overwritten. Ready is signalled whenever the queue goes from
// empty to non-empty.
type Queue struct {
	mu       sync.Mutex
	buf      []ClickEvent
	capacity int
	head     int // oldest element
	size     int
	dropped  uint64
	ready    chan struct{}
}

// NewQueue creates a queue. A non-positive capacity uses DefaultQueueSize.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &Queue{
		buf:      make([]ClickEvent, capacity),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Push appends an event, reporting whether an older one was dropped.
func (q *Queue) Push(event ClickEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := false
	tail := (q.head + q.size) % q.capacity
	q.buf[tail] = event
	if q.size == q.capacity {
		q.head = (q.head + 1) % q.capacity
		q.dropped++
		dropped = true
	} else {
		q.size++
	}

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped
}

// Drain removes and returns all buffered events in arrival order.
func (q *Queue) Drain() []ClickEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return nil
	}
	result := make([]ClickEvent, q.size)
	n := copy(result, q.buf[q.head:min(q.head+q.size, q.capacity)])
	copy(result[n:], q.buf[:q.size-n])

	q.head = 0
	q.size = 0
	return result
}

// Ready fires after a push. Receivers should Drain, which may return
// nothing if a previous drain already took the events.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Dropped returns the number of events overwritten since creation.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
