package wait

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gostdlib/racefree"
	"github.com/gostdlib/racefree/goroutines/limited"
	"github.com/gostdlib/racefree/goroutines/pooled"
	"github.com/hashicorp/go-multierror"
)

func TestGroupErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, err := limited.New("wait", 4)
	if err != nil {
		panic(err)
	}
	defer p.Close()

	tests := []struct {
		desc     string
		group    func() *Group
		failures int
	}{
		{desc: "no errors, no pool", group: func() *Group { return &Group{} }},
		{desc: "3 errors, no pool", group: func() *Group { return &Group{} }, failures: 3},
		{desc: "5 errors, pool", group: func() *Group { return &Group{Pool: p} }, failures: 5},
	}

	for _, test := range tests {
		g := test.group()
		for i := 0; i < 100; i++ {
			g.Go(ctx, func(ctx context.Context) error {
				if i < test.failures {
					return fmt.Errorf("failure %d", i)
				}
				return nil
			})
		}

		err := g.Wait(ctx)
		if test.failures == 0 {
			if err != nil {
				t.Errorf("TestGroupErrors(%s): got err == %s, want err == nil", test.desc, err)
			}
			continue
		}

		var merr *multierror.Error
		if !errors.As(err, &merr) {
			t.Errorf("TestGroupErrors(%s): got err of type %T, want *multierror.Error", test.desc, err)
			continue
		}
		if len(merr.Errors) != test.failures {
			t.Errorf("TestGroupErrors(%s): got %d errors, want %d", test.desc, len(merr.Errors), test.failures)
		}
	}
}

func TestGroupReuse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := Group{}
	g.Go(ctx, func(ctx context.Context) error { return errors.New("first") })
	if err := g.Wait(ctx); err == nil {
		t.Fatalf("TestGroupReuse: first Wait() got err == nil")
	}

	g.Go(ctx, func(ctx context.Context) error { return nil })
	if err := g.Wait(ctx); err != nil {
		t.Errorf("TestGroupReuse: second Wait() got err == %s, want err == nil", err)
	}
	if g.Running() != 0 {
		t.Errorf("TestGroupReuse: Running() == %d after Wait()", g.Running())
	}
}

func TestGroupPoolRejects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, err := pooled.New("closed", 1)
	if err != nil {
		panic(err)
	}
	p.Close()

	g := Group{Pool: p}
	g.Go(ctx, func(ctx context.Context) error { return nil })

	if err := g.Wait(ctx); !racefree.IsInvalidOperation(err) {
		t.Errorf("TestGroupPoolRejects: got err == %v, want InvalidOperation", err)
	}
}

func TestGroupCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	g := Group{}
	g.Go(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})

	if err := g.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("TestGroupCancelledContext: got err == %v, want context.Canceled", err)
	}
	if ran {
		t.Errorf("TestGroupCancelledContext: FuncCall ran with a cancelled context")
	}
}
