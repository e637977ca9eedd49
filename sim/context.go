package sim

import "strconv"

// ContextID identifies who an event runs on behalf of, typically the index of a
// simulated node.
type ContextID uint32

// GlobalContext is the context of code that does not run on behalf of any
// node, e.g., the setup code before Run.
const GlobalContext = ContextID(0xFFFFFFFF)

func (c ContextID) String() string {
	if c == GlobalContext {
		return "global"
	}

	return strconv.FormatUint(uint64(c), 10)
}

// ContextDispatcher tracks the context of the callback that is executing.
// Contexts are pushed before a callback runs and popped after it returns.
type ContextDispatcher struct {
	stack []ContextID
}

// NewContextDispatcher creates an empty ContextDispatcher.
func NewContextDispatcher() *ContextDispatcher {
	return &ContextDispatcher{
		stack: make([]ContextID, 0, 4),
	}
}

// Push makes ctx the current context.
func (d *ContextDispatcher) Push(ctx ContextID) {
	d.stack = append(d.stack, ctx)
}

// Pop restores the context that was current before the last Push. Popping an
// empty dispatcher does nothing.
func (d *ContextDispatcher) Pop() {
	if len(d.stack) == 0 {
		return
	}

	d.stack = d.stack[:len(d.stack)-1]
}

// Current returns the context on top of the stack, or GlobalContext if no
// callback is running.
func (d *ContextDispatcher) Current() ContextID {
	if len(d.stack) == 0 {
		return GlobalContext
	}

	return d.stack[len(d.stack)-1]
}

// Depth returns the number of contexts pushed.
func (d *ContextDispatcher) Depth() int {
	return len(d.stack)
}

// Reset drops all the pushed contexts.
func (d *ContextDispatcher) Reset() {
	d.stack = d.stack[:0]
}
