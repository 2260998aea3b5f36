package shelly

import (
	"sync"
)

// queue is an unbounded FIFO of reactions run on a single goroutine.
//
// post never blocks, so devices and timers may enqueue from any goroutine,
// including from inside a running reaction.
type queue struct {
	name   string
	logger Logger

	mu     sync.Mutex
	items  []func()
	closed bool

	signal chan struct{}
	done   chan struct{}
}

func newQueue(name string, logger Logger) *queue {
	q := &queue{
		name:   name,
		logger: logger,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// post enqueues f. It reports false once the queue is closed.
func (q *queue) post(f func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, f)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// call enqueues f and waits for it to run.
// It must not be called from the queue's own goroutine.
func (q *queue) call(f func()) bool {
	finished := make(chan struct{})
	if !q.post(func() {
		defer close(finished)
		f()
	}) {
		return false
	}
	<-finished
	return true
}

// close stops accepting work, drains what is queued and waits for the goroutine.
func (q *queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	<-q.done
}

func (q *queue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		batch := q.items
		q.items = nil
		closed := q.closed
		q.mu.Unlock()

		for _, f := range batch {
			q.invoke(f)
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.signal
	}
}

// invoke runs f, recovering panics so one bad reaction cannot stop the queue.
func (q *queue) invoke(f func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("reaction panicked", "queue", q.name, "panic", r)
		}
	}()
	f()
}
