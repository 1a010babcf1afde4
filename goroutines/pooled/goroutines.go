/*
Package pooled provides a goroutines.Pool with a fixed set of long-lived goroutines.

A Job handed to Submit() runs on one of the pool's goroutines. When all of them are busy Submit()
blocks until one frees up, unless NonBlocking() is passed. In that case the Job gets a goroutine
of its own and still counts toward Wait() and Running(). The zero value has no goroutines, so it
only runs NonBlocking() Jobs and rejects any other Submit() with an InvalidOperation error.

Submit() and Close() may be called concurrently. A Submit() that loses the race to Close()
returns an InvalidOperation error.
*/
package pooled

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gostdlib/racefree/goroutines"
	"github.com/gostdlib/racefree/goroutines/internal/pool"
)

var _ goroutines.Pool = &Pool{}

// Pool runs Jobs on a fixed number of goroutines.
type Pool struct {
	pool.Pool

	name string
	size int
	jobs chan task

	// mu is held for reading by Submit() from its closed check until the Job is queued,
	// and for writing by Close() while it sets closed.
	mu     sync.RWMutex
	closed bool

	inflight sync.WaitGroup
	active   atomic.Int64
}

type task struct {
	ctx context.Context
	job goroutines.Job
}

// New starts a Pool of size goroutines. name shows up in span events and may be empty.
func New(name string, size int) (*Pool, error) {
	if err := pool.ValidateSize(size); err != nil {
		return nil, err
	}

	p := &Pool{name: name, size: size, jobs: make(chan task, 1)}
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p, nil
}

// Close waits for every submitted Job and then stops the goroutines. Later calls do nothing.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.inflight.Wait()
	if p.jobs != nil {
		close(p.jobs)
	}
}

// Wait blocks until every submitted Job has returned.
func (p *Pool) Wait() {
	p.inflight.Wait()
}

// Len returns the number of goroutines in the pool.
func (p *Pool) Len() int {
	return p.size
}

// Running returns how many Jobs are submitted but not finished.
func (p *Pool) Running() int {
	return int(p.active.Load())
}

// Name returns the name given to New().
func (p *Pool) Name() string {
	return p.name
}

// NonBlocking runs the Job on a new goroutine when no pool goroutine is free.
func NonBlocking() goroutines.SubmitOption {
	return pool.NonBlocking(pool.PTPooled)
}

// Caller sets the function name used in span events. Without it the name comes from
// runtime.FuncForPC(), which is unreliable for generic functions.
func Caller(name string) goroutines.SubmitOption {
	return pool.Caller(pool.PTPooled, name)
}

// Submit hands job to the pool. A nil job or an option from another pool type is an
// InvalidArgument error. Submitting after Close() is an InvalidOperation error. A blocked
// Submit() delays a concurrent Close() until the Job is queued.
func (p *Pool) Submit(ctx context.Context, job goroutines.Job, options ...goroutines.SubmitOption) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	sub, err := pool.Check(ctx, pool.PTPooled, p.name, p.closed, job == nil, options)
	if err != nil {
		return err
	}
	if p.jobs == nil && !sub.NonBlocking {
		return sub.Reject("pooled.Pool(%s) was not created with New(), only NonBlocking() Jobs can run", p.name)
	}

	t := task{ctx: ctx, job: job}
	p.inflight.Add(1)
	p.active.Add(1)

	select {
	case p.jobs <- t:
	default:
		if sub.NonBlocking {
			go p.run(t)
			break
		}
		sub.Event("blocking")
		p.jobs <- t
	}
	sub.Event("called")
	return nil
}

func (p *Pool) run(t task) {
	defer p.inflight.Done()
	defer p.active.Add(-1)
	t.job(t.ctx)
}

func (p *Pool) worker() {
	for t := range p.jobs {
		p.run(t)
	}
}
