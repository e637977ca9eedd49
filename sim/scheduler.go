package sim

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a Scheduler.
type State int32

// All the scheduler states.
const (
	// StateIdle is the state before the first Run and between runs.
	StateIdle State = iota

	// StateRunning is the state while Run dispatches events.
	StateRunning

	// StateDestroying is the state while Destroy runs the teardown callbacks.
	StateDestroying

	// StateDestroyed is the state after Destroy. It behaves as a fresh
	// scheduler; scheduling or running moves it back to StateIdle.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateDestroying:
		return "Destroying"
	case StateDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// A Scheduler keeps a discrete event simulation running. It owns the virtual
// clock, the future event queue, and the context of the running callback.
//
// Events are dispatched one after another on the goroutine that calls Run.
// Events with the same time are dispatched in the order they were scheduled.
// Callbacks may schedule and cancel events freely.
type Scheduler struct {
	*HookableBase

	timeLock sync.RWMutex
	now      VTime

	queue         eventQueue
	immediate     *immediateQueue
	destroyEvents []*event
	contexts      *ContextDispatcher

	nextSeq uint64
	epoch   uint64

	hasStop bool
	stopAt  VTime
	stopNow bool

	state    atomic.Int32
	pending  atomic.Int64
	executed atomic.Uint64

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex
}

// NewScheduler creates a Scheduler that stores future events in a heap.
func NewScheduler() *Scheduler {
	return NewSchedulerWithQueue(HeapQueue)
}

// NewSchedulerWithQueue creates a Scheduler that stores future events in the
// given kind of queue.
func NewSchedulerWithQueue(kind QueueKind) *Scheduler {
	s := &Scheduler{
		HookableBase: NewHookableBase(),
		queue:        newEventQueue(kind),
		immediate:    newImmediateQueue(),
		contexts:     NewContextDispatcher(),
		nextSeq:      1,
		epoch:        1,
	}

	return s
}

// Schedule registers a callback to run delay after the current time, in the
// context of the callback that is currently running.
func (s *Scheduler) Schedule(delay VTime, cb Callback) (EventHandle, error) {
	return s.ScheduleWithContext(s.contexts.Current(), delay, cb)
}

// ScheduleWithContext registers a callback to run delay after the current
// time in the given context.
func (s *Scheduler) ScheduleWithContext(
	ctx ContextID,
	delay VTime,
	cb Callback,
) (EventHandle, error) {
	s.mustNotBeDestroying()

	now := s.readNow()
	if delay < 0 {
		return EventHandle{}, &InvalidTimeError{Requested: now + delay, Now: now}
	}

	if delay > MaxTime-now {
		return EventHandle{}, fmt.Errorf(
			"%w: now %s, delay %s", ErrTimeOverflow, now, delay)
	}

	return s.insert(now+delay, ctx, cb)
}

// ScheduleAt registers a callback to run at an absolute time in the given
// context. It returns an *InvalidTimeError if the time is earlier than now.
func (s *Scheduler) ScheduleAt(
	at VTime,
	ctx ContextID,
	cb Callback,
) (EventHandle, error) {
	s.mustNotBeDestroying()

	now := s.readNow()
	if at < now {
		return EventHandle{}, &InvalidTimeError{Requested: at, Now: now}
	}

	return s.insert(at, ctx, cb)
}

// ScheduleNow registers a callback to run at the current time in the given
// context, after all the events already scheduled for the current time.
func (s *Scheduler) ScheduleNow(ctx ContextID, cb Callback) (EventHandle, error) {
	return s.ScheduleWithContext(ctx, 0, cb)
}

// ScheduleDestroy registers a callback to run when Destroy is called.
// Destroy callbacks run in the order they are registered, in the global
// context. They cannot schedule other events.
func (s *Scheduler) ScheduleDestroy(cb Callback) (EventHandle, error) {
	s.mustNotBeDestroying()

	if cb == nil {
		return EventHandle{}, ErrNilCallback
	}

	s.wakeUp()

	evt := s.newEvent(s.readNow(), GlobalContext, cb)
	evt.destroy = true
	s.destroyEvents = append(s.destroyEvents, evt)

	return s.handleOf(evt), nil
}

func (s *Scheduler) insert(at VTime, ctx ContextID, cb Callback) (EventHandle, error) {
	if cb == nil {
		return EventHandle{}, ErrNilCallback
	}

	s.wakeUp()

	evt := s.newEvent(at, ctx, cb)
	if at == s.readNow() {
		s.immediate.Push(evt)
	} else {
		s.queue.Push(evt)
	}
	s.pending.Add(1)

	s.InvokeHook(HookCtx{
		Domain: s,
		Pos:    HookPosSchedule,
		Item:   evt.info(),
	})

	return s.handleOf(evt), nil
}

func (s *Scheduler) newEvent(at VTime, ctx ContextID, cb Callback) *event {
	evt := &event{
		time:     at,
		seq:      s.nextSeq,
		context:  ctx,
		callback: cb,
		state:    EventPending,
	}
	s.nextSeq++

	return evt
}

func (s *Scheduler) handleOf(evt *event) EventHandle {
	return EventHandle{evt: evt, epoch: s.epoch, s: s}
}

// Cancel marks a pending event as cancelled so that it is never dispatched.
// It does nothing if the event is running, executed, already cancelled, or
// belongs to a previous life of the scheduler.
func (s *Scheduler) Cancel(h EventHandle) {
	if h.s != s || !h.valid() {
		return
	}

	evt := h.evt
	if evt.state != EventPending {
		return
	}

	evt.state = EventCancelled
	if !evt.destroy {
		s.pending.Add(-1)
	}

	s.InvokeHook(HookCtx{
		Domain: s,
		Pos:    HookPosCancel,
		Item:   evt.info(),
	})
}

// IsExpired returns true if the event has executed or has been cancelled.
func (s *Scheduler) IsExpired(h EventHandle) bool {
	if h.s != s {
		return true
	}

	return h.IsExpired()
}

// DelayLeft returns the time left before the event is dispatched. It returns
// 0 if the event is expired.
func (s *Scheduler) DelayLeft(h EventHandle) VTime {
	if s.IsExpired(h) {
		return 0
	}

	left := h.evt.time - s.readNow()
	if left < 0 {
		return 0
	}

	return left
}

// Run dispatches events in time order until there are no more events or the
// stop boundary is reached. A panic raised by a callback propagates out of
// Run; the scheduler stays usable afterward.
func (s *Scheduler) Run() error {
	switch s.State() {
	case StateRunning:
		return ErrReentrantRun
	case StateDestroying:
		panic(ErrUseAfterDestroy)
	}

	s.setState(StateRunning)
	defer s.finishRun()

	for s.step() {
	}

	return nil
}

func (s *Scheduler) finishRun() {
	s.contexts.Reset()
	s.stopNow = false
	s.setState(StateIdle)
}

// step dispatches the next event. It returns false if the run should end.
func (s *Scheduler) step() bool {
	s.pauseLock.Lock()
	defer s.pauseLock.Unlock()

	if s.stopNow {
		return false
	}

	evt, queue := s.peekNext()
	if evt == nil {
		return false
	}

	if s.hasStop && evt.time > s.stopAt {
		return false
	}

	queue.PopMinimum()

	now := s.readNow()
	if evt.time < now {
		panic(fmt.Sprintf(
			"sim: cannot run event in the past, evt %d @ %s, now %s",
			evt.seq, evt.time, now,
		))
	}

	s.dispatch(evt)

	return true
}

func (s *Scheduler) peekNext() (*event, eventQueue) {
	queued := s.queue.PeekMinimum()
	immediate := s.immediate.PeekMinimum()

	switch {
	case queued == nil:
		return immediate, s.immediate
	case immediate == nil:
		return queued, s.queue
	case immediate.before(queued):
		return immediate, s.immediate
	default:
		return queued, s.queue
	}
}

func (s *Scheduler) dispatch(evt *event) {
	s.pending.Add(-1)
	s.writeNow(evt.time)

	s.contexts.Push(evt.context)
	evt.state = EventRunning

	defer func() {
		if evt.state == EventRunning {
			evt.state = EventExecuted
		}
		s.contexts.Pop()
	}()

	hookCtx := HookCtx{
		Domain: s,
		Pos:    HookPosBeforeEvent,
		Item:   evt.info(),
	}
	s.InvokeHook(hookCtx)

	evt.callback()

	evt.state = EventExecuted
	s.executed.Add(1)

	hookCtx.Pos = HookPosAfterEvent
	hookCtx.Item = evt.info()
	s.InvokeHook(hookCtx)
}

// Stop sets the stop boundary to delay after the current time. Events later
// than the boundary are not dispatched. A negative delay stops the simulation
// at the next check.
func (s *Scheduler) Stop(delay VTime) {
	now := s.readNow()

	at := now + delay
	if delay > 0 && delay > MaxTime-now {
		at = MaxTime
	}

	s.StopAt(at)
}

// StopAt sets the stop boundary to an absolute time. Run returns, without
// moving the clock, once the next event is later than the boundary. A
// boundary in the past makes Run return at the next check.
func (s *Scheduler) StopAt(t VTime) {
	s.mustNotBeDestroying()
	s.wakeUp()

	s.hasStop = true
	s.stopAt = t
}

// StopNow makes Run return after the current event. Called outside Run, it
// makes the next Run return immediately.
func (s *Scheduler) StopNow() {
	s.stopNow = true
}

// StopTime returns the stop boundary, if any.
func (s *Scheduler) StopTime() (VTime, bool) {
	return s.stopAt, s.hasStop
}

// Destroy cancels all the pending events, runs the destroy callbacks, and
// resets the scheduler to its initial state. Handles created before Destroy
// are expired afterward. Calling Destroy again is a no-op.
func (s *Scheduler) Destroy() {
	switch s.State() {
	case StateRunning:
		panic(ErrDestroyWhileRunning)
	case StateDestroying, StateDestroyed:
		return
	}

	s.setState(StateDestroying)
	defer func() {
		s.reset()
		s.setState(StateDestroyed)
	}()

	s.runDestroyEvents()
}

func (s *Scheduler) runDestroyEvents() {
	for _, evt := range s.destroyEvents {
		if evt.state != EventPending {
			continue
		}

		s.runDestroyEvent(evt)
	}
}

func (s *Scheduler) runDestroyEvent(evt *event) {
	s.contexts.Push(GlobalContext)
	evt.state = EventRunning

	defer func() {
		evt.state = EventExecuted
		s.contexts.Pop()
	}()

	evt.callback()
}

func (s *Scheduler) reset() {
	cancel := func(evt *event) {
		if evt.state == EventPending {
			evt.state = EventCancelled
		}
	}

	s.queue.Each(cancel)
	s.immediate.Each(cancel)
	for _, evt := range s.destroyEvents {
		cancel(evt)
	}

	s.queue.Clear()
	s.immediate.Clear()
	s.destroyEvents = nil

	s.writeNow(0)
	s.hasStop = false
	s.stopAt = 0
	s.stopNow = false
	s.contexts.Reset()

	s.nextSeq = 1
	s.epoch++
	s.pending.Store(0)
	s.executed.Store(0)
}

func (s *Scheduler) mustNotBeDestroying() {
	if s.State() == StateDestroying {
		panic(ErrUseAfterDestroy)
	}
}

// wakeUp brings a destroyed scheduler back to the idle state.
func (s *Scheduler) wakeUp() {
	s.state.CompareAndSwap(int32(StateDestroyed), int32(StateIdle))
}

func (s *Scheduler) setState(state State) {
	s.state.Store(int32(state))
}

// State returns the lifecycle state of the scheduler.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) readNow() VTime {
	s.timeLock.RLock()
	t := s.now
	s.timeLock.RUnlock()

	return t
}

func (s *Scheduler) writeNow(t VTime) {
	s.timeLock.Lock()
	s.now = t
	s.timeLock.Unlock()
}

// Now returns the current time. Inside a callback, it is the time of the
// event being dispatched.
func (s *Scheduler) Now() VTime {
	return s.readNow()
}

// CurrentContext returns the context of the callback that is running, or
// GlobalContext outside of any callback.
func (s *Scheduler) CurrentContext() ContextID {
	return s.contexts.Current()
}

// PendingEventCount returns the number of events waiting to be dispatched.
func (s *Scheduler) PendingEventCount() int {
	return int(s.pending.Load())
}

// ExecutedEventCount returns the number of events dispatched since the
// scheduler was created or last destroyed.
func (s *Scheduler) ExecutedEventCount() uint64 {
	return s.executed.Load()
}

// Pause prevents the Scheduler from dispatching more events until Continue
// is called. It must be called from a goroutine other than the one running
// Run.
func (s *Scheduler) Pause() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if s.isPaused {
		return
	}

	s.pauseLock.Lock()
	s.isPaused = true
}

// Continue allows the Scheduler to dispatch events again.
func (s *Scheduler) Continue() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if !s.isPaused {
		return
	}

	s.pauseLock.Unlock()
	s.isPaused = false
}

// IsPaused returns true if the Scheduler is paused.
func (s *Scheduler) IsPaused() bool {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	return s.isPaused
}
