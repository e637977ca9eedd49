package sim

// EventHandle references a scheduled event. It can be used to query and cancel
// the event. The zero EventHandle refers to no event and is always expired.
//
// A handle does not keep the event alive for scheduling purposes. Handles
// created before a Destroy are expired afterwards.
type EventHandle struct {
	evt   *event
	epoch uint64
	s     *Scheduler
}

func (h EventHandle) valid() bool {
	return h.evt != nil && h.s != nil && h.s.epoch == h.epoch
}

// ID returns the insertion sequence number of the event, or 0 for the zero
// handle.
func (h EventHandle) ID() uint64 {
	if h.evt == nil {
		return 0
	}

	return h.evt.seq
}

// Time returns the time that the event is scheduled at.
func (h EventHandle) Time() VTime {
	if h.evt == nil {
		return 0
	}

	return h.evt.time
}

// Context returns the context that the event runs in.
func (h EventHandle) Context() ContextID {
	if h.evt == nil {
		return GlobalContext
	}

	return h.evt.context
}

// State returns the lifecycle state of the event. Events invalidated by
// Destroy report EventCancelled.
func (h EventHandle) State() EventState {
	if !h.valid() {
		return EventCancelled
	}

	return h.evt.state
}

// IsExpired returns true if the event has executed or has been cancelled.
func (h EventHandle) IsExpired() bool {
	if !h.valid() {
		return true
	}

	return h.evt.isExpired()
}

// IsRunning returns true if the event has neither executed nor been
// cancelled yet.
func (h EventHandle) IsRunning() bool {
	return !h.IsExpired()
}

// Cancel prevents a pending event from being dispatched. Cancelling an event
// that is running, executed, or already cancelled does nothing.
func (h EventHandle) Cancel() {
	if !h.valid() {
		return
	}

	h.s.Cancel(h)
}

// DelayLeft returns how long until the event is dispatched, or 0 if the event
// is expired.
func (h EventHandle) DelayLeft() VTime {
	if !h.valid() {
		return 0
	}

	return h.s.DelayLeft(h)
}
