package sim

import (
	"math"
)

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period returns the time between two consecutive ticks, rounded to the
// nearest nanosecond.
func (f Freq) Period() VTime {
	if f <= 0 || math.IsNaN(float64(f)) {
		panic("sim: frequency must be positive")
	}

	p := VTime(math.Round(float64(Second) / float64(f)))
	if p == 0 {
		panic("sim: frequency is too high for nanosecond resolution")
	}

	return p
}

// Cycle converts a time to the number of cycles passed since time 0.
func (f Freq) Cycle(t VTime) uint64 {
	return uint64(t / f.Period())
}

// ThisTick returns the current tick time
//
//	               Input
//	               (          ]
//	    |----------|----------|----------|----->
//	                          |
//	                          Output
func (f Freq) ThisTick(now VTime) VTime {
	return thisTick(now, f.Period())
}

// NextTick returns the next tick time.
//
//	               Input
//	               [          )
//	    |----------|----------|----------|----->
//	                          |
//	                          Output
func (f Freq) NextTick(now VTime) VTime {
	return nextTick(now, f.Period())
}

// NCyclesLater returns the time after N cycles. The result is always on a
// tick.
func (f Freq) NCyclesLater(n int, now VTime) VTime {
	return f.ThisTick(now) + VTime(n)*f.Period()
}

func thisTick(now, period VTime) VTime {
	count := now / period
	if now%period != 0 {
		count++
	}

	return count * period
}

func nextTick(now, period VTime) VTime {
	return (now/period + 1) * period
}
