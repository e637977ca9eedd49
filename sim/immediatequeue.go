package sim

import "github.com/eapache/queue"

// immediateQueue holds the events scheduled for the instant at which they are
// scheduled. Since the clock never goes back and sequence numbers only grow,
// appending keeps the queue sorted by (time, seq), so a ring buffer is enough.
type immediateQueue struct {
	q *queue.Queue
}

func newImmediateQueue() *immediateQueue {
	return &immediateQueue{q: queue.New()}
}

func (q *immediateQueue) Push(evt *event) {
	if q.q.Length() > 0 {
		last := q.q.Get(-1).(*event)
		if evt.before(last) {
			panic("sim: immediate queue receives an out-of-order event")
		}
	}

	q.q.Add(evt)
}

func (q *immediateQueue) PopMinimum() *event {
	if q.PeekMinimum() == nil {
		return nil
	}

	return q.q.Remove().(*event)
}

func (q *immediateQueue) PeekMinimum() *event {
	for q.q.Length() > 0 {
		evt := q.q.Peek().(*event)
		if evt.state != EventCancelled {
			return evt
		}

		q.q.Remove()
	}

	return nil
}

func (q *immediateQueue) PeekMinimumTime() (VTime, bool) {
	evt := q.PeekMinimum()
	if evt == nil {
		return 0, false
	}

	return evt.time, true
}

func (q *immediateQueue) Len() int {
	return q.q.Length()
}

func (q *immediateQueue) Clear() {
	q.q = queue.New()
}

func (q *immediateQueue) Each(f func(evt *event)) {
	for i := 0; i < q.q.Length(); i++ {
		f(q.q.Get(i).(*event))
	}
}
