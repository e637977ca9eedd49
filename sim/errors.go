package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTime is matched by errors returned when an event is scheduled
	// earlier than the current time.
	ErrInvalidTime = errors.New("sim: cannot schedule an event in the past")

	// ErrTimeOverflow is returned when the requested time is later than
	// MaxTime.
	ErrTimeOverflow = errors.New("sim: event time overflows the virtual clock")

	// ErrNilCallback is returned when an event is scheduled without a
	// callback.
	ErrNilCallback = errors.New("sim: callback must not be nil")

	// ErrReentrantRun is returned by Run when it is called from inside a
	// callback.
	ErrReentrantRun = errors.New("sim: Run called while the scheduler is running")

	// ErrUseAfterDestroy is the panic value raised when the scheduler is used
	// while it is being torn down.
	ErrUseAfterDestroy = errors.New("sim: scheduler used during Destroy")

	// ErrDestroyWhileRunning is the panic value raised when Destroy is called
	// from inside Run.
	ErrDestroyWhileRunning = errors.New("sim: Destroy called while the scheduler is running")
)

// InvalidTimeError reports an attempt to schedule an event before the current
// time.
type InvalidTimeError struct {
	Requested VTime
	Now       VTime
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf(
		"sim: cannot schedule event at %s, now is %s", e.Requested, e.Now)
}

// Is makes InvalidTimeError match ErrInvalidTime.
func (e *InvalidTimeError) Is(target error) bool {
	return target == ErrInvalidTime
}
