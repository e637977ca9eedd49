package tracing

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/sarchlab/nsim/sim"
)

// ContextStats summarizes the events dispatched in one context.
type ContextStats struct {
	Context      sim.ContextID `json:"context"`
	Name         string      `json:"name"`
	Count        uint64      `json:"count"`
	LastDispatch sim.VTime   `json:"last_dispatch"`
}

// ContextCounter is a hook that counts the events dispatched per context. It
// can be read from other goroutines while the scheduler runs.
type ContextCounter struct {
	mu    sync.Mutex
	stats map[sim.ContextID]*ContextStats
	total uint64
}

// NewContextCounter creates an empty ContextCounter.
func NewContextCounter() *ContextCounter {
	return &ContextCounter{
		stats: make(map[sim.ContextID]*ContextStats),
	}
}

// SetName gives a context a human readable name, typically the name of the
// node that the context represents.
func (c *ContextCounter) SetName(ctx sim.ContextID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entry(ctx).Name = name
}

func (c *ContextCounter) entry(ctx sim.ContextID) *ContextStats {
	s, ok := c.stats[ctx]
	if !ok {
		s = &ContextStats{Context: ctx}
		if ctx == sim.GlobalContext {
			s.Name = "global"
		}
		c.stats[ctx] = s
	}

	return s
}

// Func counts the dispatched events.
func (c *ContextCounter) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosBeforeEvent {
		return
	}

	info, ok := ctx.Item.(sim.EventInfo)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.entry(info.Context)
	s.Count++
	s.LastDispatch = info.Time
	c.total++
}

// Count returns the number of events dispatched in a context.
func (c *ContextCounter) Count(ctx sim.ContextID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stats[ctx]
	if !ok {
		return 0
	}

	return s.Count
}

// Total returns the number of events dispatched in all the contexts.
func (c *ContextCounter) Total() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.total
}

// Stats returns a snapshot of all the contexts, ordered by context.
func (c *ContextCounter) Stats() []ContextStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := make([]ContextStats, 0, len(c.stats))
	for _, s := range c.stats {
		list = append(list, *s)
	}

	slices.SortFunc(list, func(a, b ContextStats) int {
		switch {
		case a.Context < b.Context:
			return -1
		case a.Context > b.Context:
			return 1
		default:
			return 0
		}
	})

	return list
}

// Reset clears the counts but keeps the names.
func (c *ContextCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.stats {
		s.Count = 0
		s.LastDispatch = 0
	}
	c.total = 0
}
