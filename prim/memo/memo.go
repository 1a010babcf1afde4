/*
Package memo provides a Cache that lazily computes values for keys and guarantees that
each key is computed at most once, no matter how many goroutines ask for it at the same time.

	c, err := memo.New(memo.Expensive(50 * time.Millisecond))
	if err != nil {
		// Only happens if the ComputeFunc is nil.
	}

	v := c.GetOrCompute("user:42") // computes
	v = c.GetOrCompute("user:42")  // cached

The first caller for a key places an in-flight marker in the map while holding the Cache lock,
then runs the computation without the lock. Any caller that finds the marker waits for it. Callers
asking for other keys are never blocked by a running computation.

Clear() empties the Cache and resets ComputeCount(). A computation that is running when Clear()
is called still finishes and its waiters receive the value, but the value is discarded: it is not
inserted into the emptied Cache and does not count toward the reset ComputeCount().
*/
package memo

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/gostdlib/racefree"
	"github.com/johnsiilver/calloptions"
	"go.uber.org/zap"
)

// ComputeFunc computes the value for a key. It is called at most once per key between Clear() calls.
type ComputeFunc[K comparable, V any] func(K) V

// call is an in-flight or finished computation for a key.
type call[V any] struct {
	done chan struct{}

	// These are only written before done is closed.
	val      V
	panicked bool
	pv       any
}

func (c *call[V]) result() V {
	if c.panicked {
		panic(c.pv)
	}
	return c.val
}

// Cache maps keys to values computed by a ComputeFunc.
type Cache[K comparable, V any] struct {
	compute ComputeFunc[K, V]
	log     *zap.Logger

	mu           sync.Mutex
	entries      map[K]*call[V]
	computeCount int64
}

type cacheOptions struct {
	log *zap.Logger
}

// Option is an option for New().
type Option interface {
	memo()
}

// WithLogger sets a zap.Logger that receives debug messages about computations and Clear() calls.
func WithLogger(l *zap.Logger) interface {
	Option
	calloptions.CallOption
} {
	return struct {
		Option
		calloptions.CallOption
	}{
		CallOption: calloptions.New(
			func(a any) error {
				switch t := a.(type) {
				case *cacheOptions:
					if l == nil {
						return fmt.Errorf("WithLogger cannot be passed a nil *zap.Logger")
					}
					t.log = l
					return nil
				}
				return fmt.Errorf("WithLogger can only be used with memo.Option")
			},
		),
	}
}

// New creates a Cache that uses compute to produce values.
func New[K comparable, V any](compute ComputeFunc[K, V], options ...Option) (*Cache[K, V], error) {
	if compute == nil {
		return nil, racefree.InvalidArgument("memo.New() requires a non-nil ComputeFunc")
	}

	opts := cacheOptions{log: zap.NewNop()}
	if err := calloptions.ApplyOptions(&opts, options); err != nil {
		return nil, racefree.InvalidArgument("%s", err)
	}

	return &Cache[K, V]{
		compute: compute,
		log:     opts.log,
		entries: map[K]*call[V]{},
	}, nil
}

// GetOrCompute returns the value for key, computing it if no other caller has. If another caller is
// computing key right now, this waits for that result instead of computing it again. If the ComputeFunc
// panics, every caller waiting on that computation panics with the same value and the key is removed so
// that a later call can try again.
func (c *Cache[K, V]) GetOrCompute(key K) V {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		<-e.done
		return e.result()
	}
	e := &call[V]{done: make(chan struct{})}
	c.entries[key] = e
	c.computeCount++
	c.mu.Unlock()

	c.run(key, e)
	return e.val
}

// run executes the ComputeFunc for key and publishes the result to e.
func (c *Cache[K, V]) run(key K, e *call[V]) {
	start := time.Now()
	normalReturn := false
	defer func() {
		if normalReturn {
			close(e.done)
			c.log.Debug("memo: computed key", zap.Any("key", key), zap.Duration("elapsed", time.Since(start)))
			return
		}

		e.panicked = true
		e.pv = recover()
		c.mu.Lock()
		// After a Clear() the map holds a different marker (or none) for key, which we must leave alone.
		if c.entries[key] == e {
			delete(c.entries, key)
			c.computeCount--
		}
		c.mu.Unlock()
		close(e.done)
		c.log.Debug("memo: computation panicked", zap.Any("key", key), zap.Any("panic", e.pv))
		panic(e.pv)
	}()

	e.val = c.compute(key)
	normalReturn = true
}

// ComputeCount returns how many computations were started since creation or the last Clear(),
// not counting ones that panicked. This equals the number of distinct keys computed, not the
// number of GetOrCompute() calls.
func (c *Cache[K, V]) ComputeCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.computeCount
}

// Len returns the number of keys that are cached or being computed.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear empties the Cache and resets ComputeCount() in one step.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = map[K]*call[V]{}
	c.computeCount = 0
	c.mu.Unlock()

	c.log.Debug("memo: cleared", zap.Int("keys", n))
}

// HashString returns a deterministic int for key (32 bit FNV-1a).
func HashString(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32())
}

// Expensive returns a ComputeFunc that sleeps for delay and then returns HashString(key). It stands in
// for an expensive computation in tests and in the racedetective command.
func Expensive(delay time.Duration) ComputeFunc[string, int] {
	return func(key string) int {
		if delay > 0 {
			time.Sleep(delay)
		}
		return HashString(key)
	}
}
