// Package clock provides an injectable time source so that deadline
// computation and scheduler loops can be tested deterministically.
//
// Production code receives Real(); tests receive Fake(t) and move time
// forward explicitly with Advance.
package clock

import "time"

// Clock abstracts the time operations used by the SLA and automation code.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has
	// elapsed. If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
