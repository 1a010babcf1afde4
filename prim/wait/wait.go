/*
Package wait provides Group, a sync.WaitGroup that does its own Add() and Done() bookkeeping,
collects errors like errgroup and can run its goroutines on a goroutines.Pool.

Moving money between two ledgers from many goroutines:

	g := wait.Group{Name: "transfers"}

	for i := 0; i < 1000; i++ {
		g.Go(ctx, func(ctx context.Context) error {
			_, err := a.Transfer(b, decimal.NewFromInt(1))
			return err
		})
	}

	if err := g.Wait(ctx); err != nil {
		// Handle error
	}

Wait() returns every error in one *multierror.Error, so errors.Is() and errors.As() see each of
them. A Group can be reused once Wait() returns.
*/
package wait

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gostdlib/internals/otel/span"
	"github.com/gostdlib/racefree/goroutines"
	"github.com/hashicorp/go-multierror"
)

// FuncCall is the work run by Group.Go().
type FuncCall func(ctx context.Context) error

// Group waits for a set of FuncCalls and gathers their errors.
type Group struct {
	// Name labels the span events emitted by Wait(). Defaults to "unspecified".
	Name string
	// Pool, if set, runs the FuncCalls. Otherwise each gets its own goroutine.
	Pool goroutines.Pool
	// PoolOptions are passed to every Pool.Submit().
	PoolOptions []goroutines.SubmitOption
	// CancelOnErr is called on the first error and again by Wait(), which then clears it.
	CancelOnErr context.CancelFunc

	wg       sync.WaitGroup
	running  atomic.Int64
	launched atomic.Int64
	errs     atomic.Pointer[multierror.Error]

	noCopy noCopy
}

// Go runs f(ctx). If ctx is already done f is skipped and ctx.Err() is recorded.
// A Pool that rejects the job has its error recorded instead.
func (w *Group) Go(ctx context.Context, f FuncCall) {
	w.wg.Add(1)
	w.running.Add(1)
	w.launched.Add(1)

	job := func(ctx context.Context) {
		defer w.finish()

		if err := ctx.Err(); err != nil {
			record(&w.errs, err)
			return
		}
		if err := f(ctx); err != nil {
			record(&w.errs, err)
			if w.CancelOnErr != nil {
				w.CancelOnErr()
			}
		}
	}

	if w.Pool == nil {
		go job(ctx)
		return
	}
	if err := w.Pool.Submit(ctx, job, w.PoolOptions...); err != nil {
		record(&w.errs, err)
		w.finish()
	}
}

func (w *Group) finish() {
	w.running.Add(-1)
	w.wg.Done()
}

// Running returns how many FuncCalls have not returned yet.
func (w *Group) Running() int {
	return int(w.running.Load())
}

// Wait blocks until every FuncCall has returned and then resets the Group.
// ctx is only used for span events; cancelling it does not end the wait.
func (w *Group) Wait(ctx context.Context) error {
	if w.Name == "" {
		w.Name = "unspecified"
	}
	spanner := span.Get(ctx)
	start := time.Now()
	w.event(spanner, "WaitGroup.Wait() called",
		"goroutines", w.launched.Load(),
		"cancelOnErr", w.CancelOnErr != nil,
		"pool", w.Pool != nil,
	)

	w.wg.Wait()

	if w.CancelOnErr != nil {
		w.CancelOnErr()
		w.CancelOnErr = nil
	}
	merr := w.errs.Swap(nil)
	w.running.Store(0)
	w.launched.Store(0)
	w.event(spanner, "WaitGroup.Wait() done", "elapsed_ns", time.Since(start))

	if merr != nil {
		spanner.Error(merr)
		return merr
	}
	return nil
}

func (w *Group) event(spanner span.Span, name string, kv ...any) {
	if !spanner.Span.IsRecording() {
		return
	}
	spanner.Event(name, append([]any{"name", w.Name}, kv...)...)
}

// record adds err to the errors in ptr. A context error is dropped unless nothing has
// failed yet, since it usually follows a CancelOnErr. Stored values are never mutated;
// each add swaps in a new multierror.Error.
func record(ptr *atomic.Pointer[multierror.Error], err error) {
	for {
		cur := ptr.Load()
		if cur == nil {
			if ptr.CompareAndSwap(nil, &multierror.Error{Errors: []error{err}}) {
				return
			}
			continue
		}

		if err == context.Canceled || err == context.DeadlineExceeded {
			return
		}
		next := &multierror.Error{Errors: make([]error, 0, len(cur.Errors)+1)}
		next.Errors = append(append(next.Errors, cur.Errors...), err)
		if ptr.CompareAndSwap(cur, next) {
			return
		}
	}
}

// noCopy makes go vet flag copies of a Group.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
