/*
Package workqueue provides an unbounded FIFO Queue for producer/consumer work that blocks
consumers until an item is available or the Queue is completed.

	q := workqueue.New[int]()

	go func() {
		for i := 0; i < 10; i++ {
			q.Enqueue(i)
		}
		q.Complete()
	}()

	for {
		v, ok := q.Dequeue()
		if !ok {
			break // Completed and drained.
		}
		fmt.Println(v)
	}

The emptiness check, the wait and the removal of an item all happen under one mutex paired with
a sync.Cond, so an Enqueue() can never slip in between a consumer deciding to wait and the consumer
starting to wait. Complete() wakes every waiting consumer. Once completed, Enqueue() fails and
Dequeue() on an empty Queue returns immediately.

The zero value is ready to use.
*/
package workqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gostdlib/internals/otel/span"
	"github.com/gostdlib/racefree"
)

// Queue is an unbounded, blocking FIFO queue.
type Queue[T any] struct {
	mu        sync.Mutex
	cond      *sync.Cond
	items     []T
	completed bool
	waiting   int

	stats stats
}

// New creates a new Queue. This is the same as using the zero value.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// lock locks the Queue and makes the zero value usable.
func (q *Queue[T]) lock() {
	q.mu.Lock()
	if q.cond == nil {
		q.cond = sync.NewCond(&q.mu)
	}
}

// Enqueue adds item to the back of the Queue and wakes one waiting consumer.
// After Complete() it returns an InvalidOperation error and the item is not added.
func (q *Queue[T]) Enqueue(item T) error {
	q.lock()
	defer q.mu.Unlock()

	if q.completed {
		return racefree.InvalidOperation("cannot Enqueue() on a completed Queue")
	}
	q.items = append(q.items, item)
	q.stats.enqueued.Add(1)
	q.cond.Signal()
	return nil
}

// Dequeue removes and returns the item at the front of the Queue. If the Queue is empty it waits
// until an item is enqueued or the Queue is completed. ok is false only when the Queue is
// completed and empty.
func (q *Queue[T]) Dequeue() (item T, ok bool) {
	q.lock()
	defer q.mu.Unlock()

	if q.mustWait() {
		start := time.Now()
		q.waiting++
		for q.mustWait() {
			q.cond.Wait()
		}
		q.waiting--
		q.stats.waited(time.Since(start))
	}
	return q.pop()
}

// DequeueCtx is Dequeue() that also returns when ctx is done. In that case it returns ctx.Err().
// If the context has a span, blocking and unblocking are recorded as span events.
func (q *Queue[T]) DequeueCtx(ctx context.Context) (item T, ok bool, err error) {
	spanner := span.Get(ctx)

	q.lock()
	defer q.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return item, false, err
	}
	if !q.mustWait() {
		item, ok = q.pop()
		return item, ok, nil
	}

	// Wake every waiter when ctx ends. Waiters that are not ours recheck their predicate and sleep again.
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	start := time.Now()
	if spanner.Span.IsRecording() {
		spanner.Event(
			"Queue.DequeueCtx() blocking....",
			"pkg", "github.com/gostdlib/racefree/prim/workqueue",
			"waiting", q.waiting+1,
		)
	}

	q.waiting++
	for q.mustWait() && ctx.Err() == nil {
		q.cond.Wait()
	}
	q.waiting--
	q.stats.waited(time.Since(start))

	if spanner.Span.IsRecording() {
		spanner.Event(
			"Queue.DequeueCtx() unblocking....",
			"pkg", "github.com/gostdlib/racefree/prim/workqueue",
			"wait_ns", time.Since(start),
		)
	}

	if q.mustWait() {
		err = ctx.Err()
		spanner.Error(err)
		return item, false, err
	}
	item, ok = q.pop()
	return item, ok, nil
}

// TryDequeue removes and returns the item at the front of the Queue without waiting.
// ok is false if the Queue is empty.
func (q *Queue[T]) TryDequeue() (item T, ok bool) {
	q.lock()
	defer q.mu.Unlock()

	return q.pop()
}

// Complete marks the Queue as completed and wakes all waiting consumers. Items already in the
// Queue can still be dequeued. Calling Complete() more than once has no further effect.
func (q *Queue[T]) Complete() {
	q.lock()
	defer q.mu.Unlock()

	q.completed = true
	q.cond.Broadcast()
}

// Count returns the number of items in the Queue.
func (q *Queue[T]) Count() int {
	q.lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// IsCompleted reports if Complete() has been called.
func (q *Queue[T]) IsCompleted() bool {
	q.lock()
	defer q.mu.Unlock()

	return q.completed
}

// Waiting returns the number of consumers currently blocked waiting for an item.
func (q *Queue[T]) Waiting() int {
	q.lock()
	defer q.mu.Unlock()

	return q.waiting
}

// Stats returns the Queue's stats.
func (q *Queue[T]) Stats() Stats {
	return q.stats.toStats()
}

// Reset empties the Queue, clears the stats and reopens it. It must not be called while
// consumers are waiting. Only meant for tests that reuse a Queue.
func (q *Queue[T]) Reset() {
	q.lock()
	defer q.mu.Unlock()

	q.items = nil
	q.completed = false
	q.stats.reset()
}

// mustWait reports if a consumer has to wait. q.mu must be held.
func (q *Queue[T]) mustWait() bool {
	return len(q.items) == 0 && !q.completed
}

// pop removes the front item. q.mu must be held.
func (q *Queue[T]) pop() (item T, ok bool) {
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	q.stats.dequeued.Add(1)
	return item, true
}
