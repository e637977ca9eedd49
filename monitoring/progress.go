package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/nsim/sim"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	sync.Mutex
	ID         string
	Name       string
	StartTime  time.Time
	Total      uint64
	Finished   uint64
	InProgress uint64
}

// ProgressBarStatus is a snapshot of a ProgressBar.
type ProgressBarStatus struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// Status returns a snapshot of the progress bar.
func (b *ProgressBar) Status() ProgressBarStatus {
	b.Lock()
	defer b.Unlock()

	return ProgressBarStatus{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   b.Finished,
		InProgress: b.InProgress,
	}
}

// IncrementInProgress adds the number of in-progress element.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress += amount
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// SetFinished sets the number of finished element.
func (b *ProgressBar) SetFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished = amount
}

// MoveInProgressToFinished reduces the number of in progress item by a certain
// amount and increase the finished item by the same amount.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

// SimTimeProgress is a hook that moves a progress bar with the virtual time.
// The bar counts in units of Unit, e.g., milliseconds.
type SimTimeProgress struct {
	Bar  *ProgressBar
	Unit sim.VTime
}

// NewSimTimeProgress creates a progress bar that is complete when the virtual
// time reaches end.
func (m *Monitor) NewSimTimeProgress(
	name string,
	end, unit sim.VTime,
) *SimTimeProgress {
	if unit <= 0 {
		panic("monitoring: progress unit must be positive")
	}

	return &SimTimeProgress{
		Bar:  m.CreateProgressBar(name, uint64(end/unit)),
		Unit: unit,
	}
}

// Func updates the progress bar after each event.
func (p *SimTimeProgress) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosAfterEvent {
		return
	}

	info, ok := ctx.Item.(sim.EventInfo)
	if !ok || info.Time < 0 {
		return
	}

	p.Bar.SetFinished(uint64(info.Time / p.Unit))
}
