package tickloop

import (
	"github.com/eapache/queue"
)

// Callback is a unit of work scheduled by [Loop.NextTick].
type Callback func(l *Loop)

// nextTickQueue is a FIFO of callbacks, tolerant of mutation while draining.
type nextTickQueue struct {
	q *queue.Queue
}

func newNextTickQueue() nextTickQueue {
	return nextTickQueue{q: queue.New()}
}

func (x *nextTickQueue) enqueue(fn Callback) {
	x.q.Add(fn)
}

func (x *nextTickQueue) len() int {
	return x.q.Length()
}

func (x *nextTickQueue) empty() bool {
	return x.q.Length() == 0
}

// drain runs callbacks until the queue is empty, including any enqueued by
// the callbacks themselves. Emptiness MUST be re-checked after every call.
//
// The head is removed before it is invoked, so a panicking callback is
// dropped, and everything after it stays queued.
//
// If visit is non-nil it is called with the running count, before each
// callback.
func (x *nextTickQueue) drain(l *Loop, visit func(n int)) (n int) {
	for x.q.Length() != 0 {
		fn := x.q.Remove().(Callback)
		n++
		if visit != nil {
			visit(n)
		}
		fn(l)
	}
	return n
}
