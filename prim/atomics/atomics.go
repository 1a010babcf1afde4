// Package atomics holds atomic types missing from sync/atomic.
package atomics

import (
	"sync"
	"sync/atomic"
)

// RWValue is a replacement for sync.RWMutex or atomic.Pointer when protecting a value. Readers never
// block: Load is a single atomic pointer load and always observes a complete value. Writers are
// serialized by a mutex, so a LoadReplace sees the value it replaces and nothing can be stored between
// the read and the write. Because replacing values must always be done with a copy of the value and not a
// modification of the existing value, this is not a good choice for situations with high write contention
// or large values. T is the type of the value being protected and will be stored as a *T. T should not be
// a pointer.
type RWValue[T any] struct {
	mu sync.Mutex
	v  atomic.Pointer[T]
}

// NewRWValue returns an RWValue holding v.
func NewRWValue[T any](v T) *RWValue[T] {
	r := &RWValue[T]{}
	r.v.Store(&v)
	return r
}

// Load returns the value. If nothing has been stored, this returns the zero value of T.
func (r *RWValue[T]) Load() T {
	v := r.v.Load()
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// Store sets the value to v. It waits for any LoadReplace in progress.
func (r *RWValue[T]) Store(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.v.Store(&v)
}

// LoadReplacer computes a new value from the current one. It must return a new value rather than
// change v in place, because readers may still hold v.
type LoadReplacer[T any] func(v T) (T, error)

// LoadReplace will call the LoadReplacer function with the current value and store the new value. If
// nothing has been stored, it will pass a zero value of T to the LoadReplacer function. If the LoadReplacer
// returns an error, it will be returned along with the unchanged current value and nothing is stored.
// Otherwise the stored value is returned. LoadReplace blocks all other writers while the LoadReplacer
// function is running, which makes the decision in lr and the store a single step.
func (r *RWValue[T]) LoadReplace(lr LoadReplacer[T]) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cur T
	if v := r.v.Load(); v != nil {
		cur = *v
	}

	n, err := lr(cur)
	if err != nil {
		return cur, err
	}
	r.v.Store(&n)
	return n, nil
}
