package sim

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTime
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	TimeTeller

	Schedule(delay VTime, cb Callback) (EventHandle, error)
	ScheduleWithContext(ctx ContextID, delay VTime, cb Callback) (EventHandle, error)
	ScheduleAt(at VTime, ctx ContextID, cb Callback) (EventHandle, error)
	Cancel(h EventHandle)
	CurrentContext() ContextID
}

// An Engine keeps the discrete event simulation running.
type Engine interface {
	Hookable
	EventScheduler

	// Run processes the events until there are no more events or the stop
	// boundary is reached.
	Run() error

	// StopAt sets the time after which no event is dispatched.
	StopAt(t VTime)

	// Destroy releases all the events and resets the clock.
	Destroy()
}

var _ Engine = (*Scheduler)(nil)
