// Package counter provides an int64 counter that can be incremented from any number
// of goroutines without losing an update.
package counter

import (
	"sync/atomic"
)

// Counter is a concurrency safe counter. The zero value is ready to use.
// Every mutation is a single atomic add, never a load followed by a store.
type Counter struct {
	value atomic.Int64

	noCopy noCopy // Flag govet to prevent copying
}

// Increment adds 1 and returns the new value.
func (c *Counter) Increment() int64 {
	return c.value.Add(1)
}

// IncrementBy adds amount, which may be negative, and returns the new value.
func (c *Counter) IncrementBy(amount int64) int64 {
	return c.value.Add(amount)
}

// Count returns the current value.
func (c *Counter) Count() int64 {
	return c.value.Load()
}

// Reset sets the value to 0. The store itself is atomic, but increments that are in flight
// when Reset is called may land before or after it. Only rely on the result being 0 when no
// other goroutine is incrementing.
func (c *Counter) Reset() {
	c.value.Store(0)
}

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
