// Package progress reports polling progress without coupling the poll loops
// to any output format.
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/getpup/dcprobe"
)

// Observer receives one notification per poll attempt.
type Observer interface {
	// Begin is called once before the first attempt of a polling call.
	Begin(phase dcprobe.Phase, label string)

	// Attempt is called after every attempt that did not finish the loop.
	Attempt(phase dcprobe.Phase, state dcprobe.PollState)

	// End is called once when the polling call returns, with err nil on success.
	End(phase dcprobe.Phase, outcome string, err error)
}

// Nop discards all notifications.
type Nop struct{}

// Begin implements Observer.
func (Nop) Begin(dcprobe.Phase, string) {}

// Attempt implements Observer.
func (Nop) Attempt(dcprobe.Phase, dcprobe.PollState) {}

// End implements Observer.
func (Nop) End(dcprobe.Phase, string, error) {}

// Multi fans notifications out to several observers in order.
type Multi []Observer

// Begin implements Observer.
func (m Multi) Begin(phase dcprobe.Phase, label string) {
	for _, o := range m {
		o.Begin(phase, label)
	}
}

// Attempt implements Observer.
func (m Multi) Attempt(phase dcprobe.Phase, state dcprobe.PollState) {
	for _, o := range m {
		o.Attempt(phase, state)
	}
}

// End implements Observer.
func (m Multi) End(phase dcprobe.Phase, outcome string, err error) {
	for _, o := range m {
		o.End(phase, outcome, err)
	}
}

// Console prints compact progress: the label, one dot per retried attempt on
// the same line, then the outcome.
//
//	Remote DCs: ... us-west
//	Checking: .. exists
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	dotted bool
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Begin implements Observer.
func (c *Console) Begin(_ dcprobe.Phase, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dotted = false
	fmt.Fprint(c.w, label)
}

// Attempt implements Observer.
func (c *Console) Attempt(_ dcprobe.Phase, _ dcprobe.PollState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dotted {
		fmt.Fprint(c.w, " ")
		c.dotted = true
	}
	fmt.Fprint(c.w, ".")
}

// End implements Observer.
func (c *Console) End(_ dcprobe.Phase, outcome string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		kind := dcprobe.KindOf(err)
		if kind == nil {
			kind = err
		}
		fmt.Fprintf(c.w, " failed: %v\n", kind)
		return
	}
	fmt.Fprintf(c.w, " %s\n", outcome)
}
