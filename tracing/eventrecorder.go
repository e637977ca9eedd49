// Package tracing provides hooks that observe a scheduler and keep records
// of what it does.
package tracing

import (
	"sync"

	"github.com/sarchlab/nsim/datarecording"
	"github.com/sarchlab/nsim/sim"
)

// Names of the tables written by an EventRecorder.
const (
	EventTable        = "sim_events"
	CancellationTable = "sim_cancellations"
)

// EventEntry is a row of the sim_events table.
type EventEntry struct {
	ID      uint64
	Time    int64
	Context int64
	Name    string
}

// CancellationEntry is a row of the sim_cancellations table.
type CancellationEntry struct {
	ID          uint64
	Time        int64
	CancelledAt int64
	Context     int64
	Name        string
}

// EventRecorder is a hook that writes executed and cancelled events into a
// DataRecorder.
type EventRecorder struct {
	mu         sync.Mutex
	timeTeller sim.TimeTeller
	backend    datarecording.DataRecorder

	startTime, endTime sim.VTime
	hasEndTime         bool

	numEvents        int
	numCancellations int
}

// NewEventRecorder creates an EventRecorder and the tables it writes.
func NewEventRecorder(
	timeTeller sim.TimeTeller,
	backend datarecording.DataRecorder,
) *EventRecorder {
	r := &EventRecorder{
		timeTeller: timeTeller,
		backend:    backend,
	}

	backend.CreateTable(EventTable, EventEntry{})
	backend.CreateTable(CancellationTable, CancellationEntry{})

	return r
}

// SetTimeRange limits the recording to the events dispatched between start
// and end, inclusive.
func (r *EventRecorder) SetTimeRange(start, end sim.VTime) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.startTime = start
	r.endTime = end
	r.hasEndTime = true
}

// Func records the event carried by the hook context.
func (r *EventRecorder) Func(ctx sim.HookCtx) {
	info, ok := ctx.Item.(sim.EventInfo)
	if !ok {
		return
	}

	switch ctx.Pos {
	case sim.HookPosAfterEvent:
		r.recordEvent(info)
	case sim.HookPosCancel:
		r.recordCancellation(info)
	}
}

func (r *EventRecorder) inRange(t sim.VTime) bool {
	if t < r.startTime {
		return false
	}

	if r.hasEndTime && t > r.endTime {
		return false
	}

	return true
}

func (r *EventRecorder) recordEvent(info sim.EventInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inRange(info.Time) {
		return
	}

	r.backend.InsertData(EventTable, EventEntry{
		ID:      info.ID,
		Time:    int64(info.Time),
		Context: int64(info.Context),
		Name:    info.Name(),
	})
	r.numEvents++
}

func (r *EventRecorder) recordCancellation(info sim.EventInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeTeller.Now()
	if !r.inRange(now) {
		return
	}

	r.backend.InsertData(CancellationTable, CancellationEntry{
		ID:          info.ID,
		Time:        int64(info.Time),
		CancelledAt: int64(now),
		Context:     int64(info.Context),
		Name:        info.Name(),
	})
	r.numCancellations++
}

// NumEvents returns the number of executed events recorded.
func (r *EventRecorder) NumEvents() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.numEvents
}

// NumCancellations returns the number of cancellations recorded.
func (r *EventRecorder) NumCancellations() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.numCancellations
}
