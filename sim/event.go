package sim

import (
	"reflect"
	"runtime"
	"strings"
)

// Callback is the work that an event performs when dispatched. Parameters are
// captured by the closure.
type Callback func()

// EventState tells where an event is in its lifecycle. States only move
// forward: Pending -> Running -> Executed, or Pending -> Cancelled.
type EventState int

// All the event states.
const (
	EventPending EventState = iota
	EventRunning
	EventCancelled
	EventExecuted
)

func (s EventState) String() string {
	switch s {
	case EventPending:
		return "Pending"
	case EventRunning:
		return "Running"
	case EventCancelled:
		return "Cancelled"
	case EventExecuted:
		return "Executed"
	default:
		return "Unknown"
	}
}

// An event is something going to happen in the future.
type event struct {
	time     VTime
	seq      uint64
	context  ContextID
	callback Callback
	state    EventState
	destroy  bool
}

// before returns true if e should be dispatched before other.
func (e *event) before(other *event) bool {
	if e.time != other.time {
		return e.time < other.time
	}

	return e.seq < other.seq
}

func (e *event) isExpired() bool {
	return e.state == EventCancelled || e.state == EventExecuted
}

func (e *event) info() EventInfo {
	return EventInfo{
		ID:       e.seq,
		Time:     e.time,
		Context:  e.context,
		State:    e.state,
		callback: e.callback,
	}
}

// EventInfo is a read-only snapshot of an event. Hooks receive EventInfo as
// the HookCtx item.
type EventInfo struct {
	ID      uint64
	Time    VTime
	Context ContextID
	State   EventState

	callback Callback
}

// Name returns the name of the function that the event calls. Closures are
// reported with the name of the enclosing function.
func (i EventInfo) Name() string {
	if i.callback == nil {
		return ""
	}

	fn := runtime.FuncForPC(reflect.ValueOf(i.callback).Pointer())
	if fn == nil {
		return ""
	}

	name := fn.Name()
	if slash := strings.LastIndex(name, "/"); slash >= 0 {
		name = name[slash+1:]
	}

	return name
}
