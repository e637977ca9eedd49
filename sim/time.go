package sim

import (
	"fmt"
	"math"
	"time"
)

// VTime defines the time in the simulated space in the unit of nanosecond.
//
// Virtual time has no relation to wall-clock time. It only moves when the
// scheduler dispatches an event.
type VTime int64

// MaxTime is the latest time that an event can be scheduled at.
const MaxTime = VTime(math.MaxInt64)

// Units of virtual time.
const (
	NanoSecond  VTime = 1
	MicroSecond VTime = 1e3
	MilliSecond VTime = 1e6
	Second      VTime = 1e9
)

// Seconds converts a number of seconds to a VTime, rounded to the nearest
// nanosecond.
func Seconds(s float64) VTime {
	return fromFloat(s, Second)
}

// MilliSeconds converts a number of milliseconds to a VTime.
func MilliSeconds(ms float64) VTime {
	return fromFloat(ms, MilliSecond)
}

// MicroSeconds converts a number of microseconds to a VTime.
func MicroSeconds(us float64) VTime {
	return fromFloat(us, MicroSecond)
}

// NanoSeconds converts a number of nanoseconds to a VTime.
func NanoSeconds(ns int64) VTime {
	return VTime(ns)
}

func fromFloat(v float64, unit VTime) VTime {
	if math.IsNaN(v) {
		panic("sim: time cannot be NaN")
	}

	scaled := math.Round(v * float64(unit))
	if scaled >= math.MaxInt64 {
		return MaxTime
	}

	if scaled <= math.MinInt64 {
		return VTime(math.MinInt64)
	}

	return VTime(scaled)
}

// ParseTime parses a duration string such as "1.5s" or "20ms" into a VTime.
func ParseTime(s string) (VTime, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("sim: invalid time %q: %w", s, err)
	}

	return VTime(d.Nanoseconds()), nil
}

// Seconds returns the time in the unit of second.
func (t VTime) Seconds() float64 {
	return float64(t) / float64(Second)
}

// Duration converts the virtual time to a time.Duration of the same length.
func (t VTime) Duration() time.Duration {
	return time.Duration(t)
}

// String prints the time in seconds with nanosecond precision, e.g. "+2.000000000s".
func (t VTime) String() string {
	sign := "+"
	v := int64(t)
	if v < 0 {
		sign = "-"
		v = -v
	}

	return fmt.Sprintf("%s%d.%09ds", sign, v/int64(Second), v%int64(Second))
}
