package sim

// A Ticker is an object that updates states with ticks. Tick returns true if
// progress is made, in which case another tick follows one period later.
type Ticker interface {
	Tick() bool
}

// TickerFunc adapts a function to the Ticker interface.
type TickerFunc func() bool

// Tick calls f.
func (f TickerFunc) Tick() bool {
	return f()
}

// TickScheduler helps schedule ticks of a Ticker in a context. It never keeps
// more than one tick pending.
type TickScheduler struct {
	scheduler EventScheduler
	ctx       ContextID
	period    VTime
	ticker    Ticker

	next    EventHandle
	stopped bool
}

// NewTickScheduler creates a TickScheduler that ticks at the given frequency.
func NewTickScheduler(
	scheduler EventScheduler,
	ctx ContextID,
	freq Freq,
	ticker Ticker,
) *TickScheduler {
	return NewTickSchedulerWithPeriod(scheduler, ctx, freq.Period(), ticker)
}

// NewTickSchedulerWithPeriod creates a TickScheduler that ticks every period.
func NewTickSchedulerWithPeriod(
	scheduler EventScheduler,
	ctx ContextID,
	period VTime,
	ticker Ticker,
) *TickScheduler {
	if period <= 0 {
		panic("sim: tick period must be positive")
	}

	return &TickScheduler{
		scheduler: scheduler,
		ctx:       ctx,
		period:    period,
		ticker:    ticker,
	}
}

// Period returns the time between two ticks.
func (t *TickScheduler) Period() VTime {
	return t.period
}

// TickNow schedules a tick at the current tick time.
func (t *TickScheduler) TickNow() {
	t.stopped = false
	t.tickAt(thisTick(t.scheduler.Now(), t.period))
}

// TickLater schedules a tick at the tick after the current time.
func (t *TickScheduler) TickLater() {
	t.stopped = false
	t.tickAt(nextTick(t.scheduler.Now(), t.period))
}

func (t *TickScheduler) tickAt(at VTime) {
	switch t.next.State() {
	case EventPending:
		if t.next.Time() <= at {
			return
		}

		t.scheduler.Cancel(t.next)
	case EventRunning:
		if t.next.Time() >= at {
			return
		}
	}

	h, err := t.scheduler.ScheduleAt(at, t.ctx, t.handle)
	if err != nil {
		panic(err)
	}

	t.next = h
}

func (t *TickScheduler) handle() {
	t.stopped = false
	if t.ticker.Tick() && !t.stopped {
		t.TickLater()
	}
}

// Stop cancels the pending tick. Called from inside Tick, it also prevents
// the next tick from being scheduled.
func (t *TickScheduler) Stop() {
	t.stopped = true
	t.scheduler.Cancel(t.next)
	t.next = EventHandle{}
}

// IsTicking returns true if a tick is pending or running.
func (t *TickScheduler) IsTicking() bool {
	return t.next.IsRunning()
}

// NextTickTime returns the time of the pending tick.
func (t *TickScheduler) NextTickTime() (VTime, bool) {
	if t.next.State() != EventPending {
		return 0, false
	}

	return t.next.Time(), true
}
