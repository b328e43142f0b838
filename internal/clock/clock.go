// Package clock lets services take the current time as a dependency.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time {
	return f()
}

// NewSystem returns a clock backed by time.Now, in UTC.
func NewSystem() Clock {
	return Func(func() time.Time { return time.Now().UTC() })
}

// NewFixed returns a clock that always returns the same instant.
func NewFixed(t time.Time) Clock {
	t = t.UTC()
	return Func(func() time.Time { return t })
}

// NewStepping returns a clock starting at start that moves forward by step
// on every call. Safe for concurrent use.
func NewStepping(start time.Time, step time.Duration) Clock {
	var mu sync.Mutex
	next := start.UTC()
	return Func(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(step)
		return now
	})
}
