package sim

import (
	"container/heap"
	"container/list"
)

// QueueKind selects the data structure that holds future events.
type QueueKind int

// The supported event queues.
const (
	// HeapQueue is a binary heap. Insert and pop are O(log n).
	HeapQueue QueueKind = iota

	// InsertionQueue is a sorted linked list. Insert is O(n) and pop is O(1).
	// It is faster than the heap when most events are scheduled in the near
	// future.
	InsertionQueue
)

func (k QueueKind) String() string {
	switch k {
	case HeapQueue:
		return "heap"
	case InsertionQueue:
		return "list"
	default:
		return "unknown"
	}
}

// An eventQueue holds future events ordered by (time, insertion sequence).
//
// Cancelled events are removed lazily. PopMinimum and PeekMinimum never return
// a cancelled event; they discard the ones they run into.
type eventQueue interface {
	Push(evt *event)
	PopMinimum() *event
	PeekMinimum() *event
	PeekMinimumTime() (VTime, bool)
	Len() int
	Clear()
	Each(f func(evt *event))
}

func newEventQueue(kind QueueKind) eventQueue {
	switch kind {
	case InsertionQueue:
		return newInsertionQueue()
	default:
		return newHeapQueue()
	}
}

type heapQueue struct {
	events eventHeap
}

func newHeapQueue() *heapQueue {
	q := new(heapQueue)
	q.events = make([]*event, 0)
	heap.Init(&q.events)

	return q
}

func (q *heapQueue) Push(evt *event) {
	heap.Push(&q.events, evt)
}

func (q *heapQueue) PopMinimum() *event {
	if q.PeekMinimum() == nil {
		return nil
	}

	return heap.Pop(&q.events).(*event)
}

func (q *heapQueue) PeekMinimum() *event {
	for q.events.Len() > 0 {
		evt := q.events[0]
		if evt.state != EventCancelled {
			return evt
		}

		heap.Pop(&q.events)
	}

	return nil
}

func (q *heapQueue) PeekMinimumTime() (VTime, bool) {
	evt := q.PeekMinimum()
	if evt == nil {
		return 0, false
	}

	return evt.time, true
}

func (q *heapQueue) Len() int {
	return q.events.Len()
}

func (q *heapQueue) Clear() {
	clear(q.events)
	q.events = q.events[:0]
}

func (q *heapQueue) Each(f func(evt *event)) {
	for _, evt := range q.events {
		f(evt)
	}
}

type eventHeap []*event

// Len returns the length of the event queue
func (h eventHeap) Len() int {
	return len(h)
}

// Less determines the order between two events. Events at the same time are
// ordered by the sequence they are inserted.
func (h eventHeap) Less(i, j int) bool {
	return h[i].before(h[j])
}

// Swap changes the position of two events in the event queue
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

// Push adds an event into the event queue
func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*event))
}

// Pop removes and returns the next event to happen
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]

	return evt
}

// insertionQueue is a queue that is based on insertion sort
type insertionQueue struct {
	l *list.List
}

func newInsertionQueue() *insertionQueue {
	q := new(insertionQueue)
	q.l = list.New()

	return q
}

// Push searches from the back since new events tend to be the latest ones.
func (q *insertionQueue) Push(evt *event) {
	var ele *list.Element
	for ele = q.l.Back(); ele != nil; ele = ele.Prev() {
		if !evt.before(ele.Value.(*event)) {
			break
		}
	}

	if ele != nil {
		q.l.InsertAfter(evt, ele)
	} else {
		q.l.PushFront(evt)
	}
}

func (q *insertionQueue) PopMinimum() *event {
	if q.PeekMinimum() == nil {
		return nil
	}

	return q.l.Remove(q.l.Front()).(*event)
}

func (q *insertionQueue) PeekMinimum() *event {
	for q.l.Len() > 0 {
		front := q.l.Front()
		evt := front.Value.(*event)
		if evt.state != EventCancelled {
			return evt
		}

		q.l.Remove(front)
	}

	return nil
}

func (q *insertionQueue) PeekMinimumTime() (VTime, bool) {
	evt := q.PeekMinimum()
	if evt == nil {
		return 0, false
	}

	return evt.time, true
}

func (q *insertionQueue) Len() int {
	return q.l.Len()
}

func (q *insertionQueue) Clear() {
	q.l.Init()
}

func (q *insertionQueue) Each(f func(evt *event)) {
	for ele := q.l.Front(); ele != nil; ele = ele.Next() {
		f(ele.Value.(*event))
	}
}
