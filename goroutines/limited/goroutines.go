/*
Package limited provides a goroutines.Pool that starts a goroutine per Job but never runs
more than a fixed number of Jobs at once.

A Job holds its slot until it returns, so Submit() blocks while size Jobs are running unless
NonBlocking() is passed. A NonBlocking() Job runs outside the limit but is still tracked by
Wait() and Running(). Nothing is started up front, so a limited.Pool is cheap to create per test
or per scenario. A Pool must be made with New(); the zero value only runs NonBlocking() Jobs.

Submit() and Close() may be called concurrently. A Submit() that loses the race to Close()
returns an InvalidOperation error.
*/
package limited

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gostdlib/racefree/goroutines"
	"github.com/gostdlib/racefree/goroutines/internal/pool"
)

var _ goroutines.Pool = &Pool{}

// Pool runs each Job on its own goroutine, at most Len() at a time.
type Pool struct {
	pool.Pool

	name  string
	slots chan struct{}

	// mu is held for reading by Submit() from its closed check until the Job is started,
	// and for writing by Close() while it sets closed.
	mu     sync.RWMutex
	closed bool

	inflight sync.WaitGroup
	active   atomic.Int64
}

// New returns a Pool running at most size Jobs at once. name shows up in span events
// and may be empty.
func New(name string, size int) (*Pool, error) {
	if err := pool.ValidateSize(size); err != nil {
		return nil, err
	}
	return &Pool{name: name, slots: make(chan struct{}, size)}, nil
}

// Close waits for every submitted Job. Later calls to Submit() return an error.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.inflight.Wait()
}

// Wait blocks until every submitted Job has returned.
func (p *Pool) Wait() {
	p.inflight.Wait()
}

// Len returns the maximum number of Jobs that run at once.
func (p *Pool) Len() int {
	return cap(p.slots)
}

// Running returns how many Jobs are submitted but not finished.
func (p *Pool) Running() int {
	return int(p.active.Load())
}

// Name returns the name given to New().
func (p *Pool) Name() string {
	return p.name
}

// NonBlocking runs the Job right away even at the limit. It does not take a slot.
func NonBlocking() goroutines.SubmitOption {
	return pool.NonBlocking(pool.PTLimited)
}

// Caller sets the function name used in span events.
func Caller(name string) goroutines.SubmitOption {
	return pool.Caller(pool.PTLimited, name)
}

// Submit runs job on a new goroutine once a slot is free. A nil job or an option from
// another pool type is an InvalidArgument error. Submitting after Close() is an
// InvalidOperation error.
func (p *Pool) Submit(ctx context.Context, job goroutines.Job, options ...goroutines.SubmitOption) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	sub, err := pool.Check(ctx, pool.PTLimited, p.name, p.closed, job == nil, options)
	if err != nil {
		return err
	}
	if p.slots == nil && !sub.NonBlocking {
		return sub.Reject("limited.Pool(%s) was not created with New(), only NonBlocking() Jobs can run", p.name)
	}

	slotted := !sub.NonBlocking
	if slotted {
		select {
		case p.slots <- struct{}{}:
		default:
			sub.Event("blocking")
			p.slots <- struct{}{}
			sub.Event("unblocked")
		}
	}
	sub.Event("called")

	p.inflight.Add(1)
	p.active.Add(1)
	go func() {
		defer p.inflight.Done()
		defer p.active.Add(-1)
		if slotted {
			defer func() { <-p.slots }()
		}
		job(ctx)
	}()
	return nil
}
