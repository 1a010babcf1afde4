package wait

import (
	"context"
	"errors"
	"fmt"

	"github.com/gostdlib/racefree/goroutines/pooled"
	"github.com/gostdlib/racefree/prim/counter"
	"github.com/gostdlib/racefree/prim/ledger"
	"github.com/shopspring/decimal"
)

// ExampleGroup_counter illustrates the use of a Group in place of a sync.WaitGroup to
// simplify goroutine counting.
func ExampleGroup_counter() {
	ctx := context.Background()
	g := Group{Name: "counter"}

	c := &counter.Counter{}
	for i := 0; i < 10; i++ {
		g.Go(ctx, func(ctx context.Context) error {
			for j := 0; j < 10000; j++ {
				c.Increment()
			}
			return nil
		})
	}

	if err := g.Wait(ctx); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(c.Count())

	// Output: 100000
}

// ExampleGroup_transfers runs 1000 transfers of 1 from a ledger holding 100 on a pool.
// Only 100 of them can succeed.
func ExampleGroup_transfers() {
	ctx := context.Background()
	p, _ := pooled.New("transfers", 10)
	defer p.Close()

	a := ledger.New(decimal.NewFromInt(100))
	b := ledger.New(decimal.Zero)

	g := Group{Pool: p}
	for i := 0; i < 1000; i++ {
		g.Go(ctx, func(ctx context.Context) error {
			_, err := a.Transfer(b, decimal.NewFromInt(1))
			return err
		})
	}
	if err := g.Wait(ctx); err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(a.Balance(), b.Balance())

	// Output: 0 100
}

var errStop = errors.New("stop")

// ExampleGroup_cancel_on_err illustrates how to use a Group to do parallel tasks and
// cancel all remaining tasks if a single task has an error.
func ExampleGroup_cancel_on_err() {
	ctx, cancel := context.WithCancel(context.Background())
	p, _ := pooled.New("poolName", 10)
	defer p.Close()

	g := Group{Pool: p, CancelOnErr: cancel}

	for i := 0; i < 10000; i++ {
		g.Go(
			ctx,
			func(ctx context.Context) error {
				if i == 100 {
					return errStop
				}
				return nil
			},
		)
	}

	err := g.Wait(ctx)
	fmt.Println(errors.Is(err, errStop))

	// Output: true
}
