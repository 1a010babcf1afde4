/*
Package goroutines defines the Pool interface shared by the pool implementations
in its sub-directories, plus Errors for gathering failures from Jobs.

	pooled  - a fixed set of goroutines that are reused for every Job
	limited - a new goroutine per Job, but never more than the limit at once

Example of hammering a counter.Counter from a pool, where errors don't matter:

	ctx := context.Background()
	p, err := pooled.New("counter", runtime.NumCPU())
	if err != nil {
		panic(err)
	}
	defer p.Close()

	c := &counter.Counter{}
	for i := 0; i < 10; i++ {
		p.Submit(
			ctx,
			func(ctx context.Context) {
				for j := 0; j < 10000; j++ {
					c.Increment()
				}
			},
		)
	}
	p.Wait()
	fmt.Println(c.Count()) // 100000

Example of collecting errors from Jobs without stopping the others:

	e := goroutines.Errors{}
	for _, amount := range amounts {
		p.Submit(
			ctx,
			func(ctx context.Context) {
				if err := l.Deposit(amount); err != nil {
					e.Record(err)
				}
			},
		)
	}
	p.Wait()

	if err := e.Err(); err != nil {
		// err holds every recorded error.
	}
*/
package goroutines

import (
	"context"
	"sync"

	"github.com/gostdlib/racefree/goroutines/internal/pool"
	"github.com/hashicorp/go-multierror"
)

// Job is the unit of work a Pool runs.
type Job func(ctx context.Context)

// SubmitOption is an option for Pool.Submit().
type SubmitOption func(opt *pool.SubmitOptions) error

// Pool runs Jobs on goroutines it manages. It is implemented by pooled.Pool and limited.Pool
// and cannot be implemented outside this module.
type Pool interface {
	pool.Preventer

	// Submit schedules runner. It returns an error if the Pool is closed or an option is invalid.
	Submit(ctx context.Context, runner Job, options ...SubmitOption) error
	// Close waits for submitted Jobs and releases the Pool. Submit fails afterwards.
	Close()
	// Wait blocks until every submitted Job returned. Stop submitting before calling it.
	Wait()
	// Len returns the Pool's concurrency.
	Len() int
	// Running returns the number of Jobs submitted but not finished.
	Running() int
}

// Errors gathers errors from many goroutines. The zero value is ready to use.
type Errors struct {
	mu  sync.Mutex
	err *multierror.Error
}

// Record writes an error to Errors. A nil error is ignored.
func (e *Errors) Record(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.err = multierror.Append(e.err, err)
}

// Err returns all recorded errors as one error, or nil if none were recorded.
func (e *Errors) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.err.ErrorOrNil()
}

// Errors returns a copy of all recorded errors.
func (e *Errors) Errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err == nil {
		return nil
	}
	out := make([]error, len(e.err.Errors))
	copy(out, e.err.Errors)
	return out
}

// Len returns the number of recorded errors.
func (e *Errors) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err == nil {
		return 0
	}
	return len(e.err.Errors)
}
