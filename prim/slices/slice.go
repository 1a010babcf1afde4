// Package slices runs a function over every element of a slice on a goroutines.Pool.
package slices

import (
	"context"
	"runtime"

	"github.com/gostdlib/internals/otel/span"
	"github.com/gostdlib/racefree/goroutines"
	"github.com/gostdlib/racefree/goroutines/limited"
	"github.com/gostdlib/racefree/prim/wait"
	"github.com/johnsiilver/calloptions"
)

// Modifier replaces the element an Accessor was called for.
type Modifier[V any] func(v V)

// Accessor receives an element's index and value, plus a Modifier bound to that index.
type Accessor[T any] func(context.Context, int, T, Modifier[T]) error

type sliceOptions struct {
	pool        goroutines.Pool
	poolOptions []goroutines.SubmitOption
	stopOnErr   bool
}

// SliceOption is an option for Access().
type SliceOption interface {
	slice()
}

// Access calls access once per element of s, in parallel. Without WithPool() the calls run on a
// limited.Pool of runtime.NumCPU() goroutines created for this call. Errors are returned
// together; by default one failure does not skip the remaining elements, see WithStopOnErr().
// Every Modifier writes a distinct index, so no lock is taken.
func Access[T any](ctx context.Context, s []T, access Accessor[T], options ...SliceOption) error {
	spanner := span.Get(ctx)

	opts := sliceOptions{}
	if err := calloptions.ApplyOptions(&opts, options); err != nil {
		spanner.Error(err)
		return err
	}

	if len(s) == 0 {
		return nil
	}

	if opts.pool == nil {
		var err error
		opts.pool, err = limited.New("", runtime.NumCPU())
		if err != nil {
			spanner.Error(err)
			return err
		}
		defer opts.pool.Close()
	}

	parent := ctx
	var cancel = func() {}
	if opts.stopOnErr {
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
	}
	g := wait.Group{Name: "slices.Access", Pool: opts.pool, PoolOptions: opts.poolOptions, CancelOnErr: cancel}

	for i := 0; i < len(s); i++ {
		if ctx.Err() != nil {
			break
		}

		g.Go(
			ctx,
			func(ctx context.Context) error {
				return access(ctx, i, s[i], func(v T) { s[i] = v })
			},
		)
	}
	if err := g.Wait(ctx); err != nil {
		spanner.Error(err)
		return err
	}
	// Wait() cancels the derived ctx, only the caller's ctx says if we stopped early.
	return parent.Err()
}
