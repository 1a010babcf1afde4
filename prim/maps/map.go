/*
Package maps provides functions for operating on maps in parallel.

Access() hands every entry of a map to an Accessor running on a goroutines.Pool. Go maps are
not safe for concurrent writes, so the Modifier each Accessor gets takes a lock shared by all
of them before it stores the new value:

	balances := map[string]decimal.Decimal{"a": ..., "b": ...}
	err := maps.Access(
		ctx,
		balances,
		func(ctx context.Context, name string, bal decimal.Decimal, m maps.Modifier[decimal.Decimal]) error {
			m(bal.Mul(interest))
			return nil
		},
	)
*/
package maps

import (
	"context"
	"runtime"
	"sync"

	"github.com/gostdlib/internals/otel/span"
	"github.com/gostdlib/racefree/goroutines"
	"github.com/gostdlib/racefree/goroutines/limited"
	"github.com/gostdlib/racefree/prim/wait"
	"github.com/johnsiilver/calloptions"
)

// Modifier sets the current key to value v in a map. It is safe to call concurrently.
type Modifier[V any] func(v V)

// Accessor is a function that is called on each entry in a map.
// This passes the key and value of a map entry and a Modifier function that can be used
// to change the value for that entry.
type Accessor[K comparable, V any] func(context.Context, K, V, Modifier[V]) error

type mapOptions struct {
	pool        goroutines.Pool
	poolOptions []goroutines.SubmitOption
	stopOnErr   bool
}

// Option is an option for Access().
type Option interface {
	mapFunc()
}

// Access calls Accessor "access" for each entry in "m" in parallel. If WithPool() isn't provided,
// we use a limited.Pool using up to runtime.NumCPU(). All errors are returned combined, but an error
// does not stop the other entries from being accessed (this behavior can be overridden with the
// WithStopOnErr() option). The map must not be read or written by anything else until Access returns.
func Access[K comparable, V any](ctx context.Context, m map[K]V, access Accessor[K, V], options ...Option) error {
	spanner := span.Get(ctx)

	opts := mapOptions{}
	if err := calloptions.ApplyOptions(&opts, options); err != nil {
		spanner.Error(err)
		return err
	}

	if len(m) == 0 {
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
	g := wait.Group{Name: "maps.Access", Pool: opts.pool, PoolOptions: opts.poolOptions, CancelOnErr: cancel}

	// Ranging over m while Modifiers write to it would race, so take the entries first.
	type entry struct {
		k K
		v V
	}
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		entries = append(entries, entry{k, v})
	}

	mu := sync.Mutex{}
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}

		g.Go(
			ctx,
			func(ctx context.Context) error {
				return access(
					ctx,
					e.k,
					e.v,
					func(v V) {
						mu.Lock()
						m[e.k] = v
						mu.Unlock()
					},
				)
			},
		)
	}
	if err := g.Wait(ctx); err != nil {
		spanner.Error(err)
		return err
	}
	return parent.Err()
}
