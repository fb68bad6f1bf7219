package websocket

import "sync"

const eventQueueSize = 256

type inboundEvent struct {
	name string
	args []any
	ack  ackInvoker
}

// eventQueue hands one connection's events to a single worker so they are
// applied in the order the connection sent them. A full queue blocks the
// caller, which is the connection's read loop. The worker starts with the
// first event.
type eventQueue struct {
	mu      sync.Mutex
	closed  bool
	started bool
	events  chan inboundEvent
	done    chan struct{}
	handle  func(inboundEvent)
}

func newEventQueue(size int, handle func(inboundEvent)) *eventQueue {
	return &eventQueue{
		events: make(chan inboundEvent, size),
		done:   make(chan struct{}),
		handle: handle,
	}
}

func (q *eventQueue) run() {
	defer close(q.done)
	for ev := range q.events {
		q.handle(ev)
	}
}

// push enqueues ev. It reports false once the queue is closed.
func (q *eventQueue) push(ev inboundEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if !q.started {
		q.started = true
		go q.run()
	}
	q.events <- ev
	return true
}

// closeAndWait stops accepting events and returns after every queued event
// has been handled. Safe to call more than once.
func (q *eventQueue) closeAndWait() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	started := q.started
	q.mu.Unlock()

	if started {
		<-q.done
	}
}
