package controller

import (
	"sync"

	"github.com/roach88/leakguard/internal/engine"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeTick feeds one sensor reading to the engine.
	EventTypeTick EventType = iota + 1
	// EventTypeReconfigure replaces every criterion with a decoded document.
	EventTypeReconfigure
	// EventTypeRemove removes the criterion at Index.
	EventTypeRemove
	// EventTypeAdd appends Criterion at the lowest priority.
	EventTypeAdd
)

func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeReconfigure:
		return "reconfigure"
	case EventTypeRemove:
		return "remove"
	case EventTypeAdd:
		return "add"
	default:
		return "unknown"
	}
}

// Event is one unit of work for the Run loop. Only the fields matching
// Type are read.
type Event struct {
	Type      EventType
	Reading   Reading
	Document  string
	Index     int
	Criterion engine.Criterion
}

// TickEvent wraps a reading.
func TickEvent(r Reading) Event {
	return Event{Type: EventTypeTick, Reading: r}
}

// ReconfigureEvent wraps a criteria document.
func ReconfigureEvent(document string) Event {
	return Event{Type: EventTypeReconfigure, Document: document}
}

// RemoveEvent wraps a criterion position.
func RemoveEvent(index int) Event {
	return Event{Type: EventTypeRemove, Index: index}
}

// AddEvent wraps a criterion.
func AddEvent(c engine.Criterion) Event {
	return Event{Type: EventTypeAdd, Criterion: c}
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so sensor readers never block on a slow
// actuator or store.
//
// Thread-safety is provided for external enqueuing (sensor readers,
// configuration watchers) while the Controller's Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Clear the slot so the backing array does not pin the reading's probe list.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel. Events already
// queued are still delivered.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
