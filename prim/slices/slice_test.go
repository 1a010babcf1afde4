package slices

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/gostdlib/racefree/goroutines/pooled"
	"github.com/gostdlib/racefree/prim/ledger"
	"github.com/kylelemons/godebug/pretty"
	"github.com/shopspring/decimal"
)

func TestSliceMut(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, err := pooled.New("slices", 3)
	if err != nil {
		panic(err)
	}
	defer p.Close()

	tests := []struct {
		desc    string
		s       []int
		a       Accessor[int]
		options []SliceOption
		want    []int
		err     bool
	}{
		{
			desc: "normal case",
			s:    []int{1, 2, 3, 4, 5},
			a: func(ctx context.Context, i int, v int, m Modifier[int]) error {
				m(v + 1)
				return nil
			},
			want: []int{2, 3, 4, 5, 6},
		},
		{
			desc: "normal case with pool",
			s:    []int{1, 2, 3, 4, 5},
			a: func(ctx context.Context, i int, v int, m Modifier[int]) error {
				m(v * 2)
				return nil
			},
			options: []SliceOption{WithPool(p)},
			want:    []int{2, 4, 6, 8, 10},
		},
		{
			desc: "error case",
			s:    []int{1, 2, 3, 4, 5},
			a: func(ctx context.Context, i int, v int, m Modifier[int]) error {
				if i == 3 {
					return fmt.Errorf("mock error")
				}
				m(v + 1)
				return nil
			},
			want: []int{2, 3, 4, 4, 6},
			err:  true,
		},
		{
			desc:    "nil pool",
			s:       []int{1},
			a:       func(ctx context.Context, i int, v int, m Modifier[int]) error { return nil },
			options: []SliceOption{WithPool(nil)},
			err:     true,
		},
	}

	for _, test := range tests {
		err := Access(ctx, test.s, test.a, test.options...)
		switch {
		case err == nil && test.err:
			t.Errorf("TestSliceMut(%s): want err != nil, got err == nil", test.desc)
			continue
		case err != nil && !test.err:
			t.Errorf("TestSliceMut(%s): got err == %s, want err == nil", test.desc, err)
			continue
		case err != nil && test.want == nil:
			continue
		}

		// Errors do not stop other elements from being accessed.
		if diff := pretty.Compare(test.want, test.s); diff != "" {
			t.Errorf("TestSliceMut(%s): -want/+got:\n%s", test.desc, diff)
		}
	}
}

func TestStopOnErr(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	s := make([]int, 10000)
	var calls atomic.Int64

	p, err := pooled.New("stop", 1)
	if err != nil {
		panic(err)
	}
	defer p.Close()

	err = Access(
		context.Background(),
		s,
		func(ctx context.Context, i int, v int, m Modifier[int]) error {
			calls.Add(1)
			if i == 0 {
				return errBoom
			}
			return nil
		},
		WithPool(p),
		WithStopOnErr(),
	)
	if !errors.Is(err, errBoom) {
		t.Fatalf("TestStopOnErr: got err == %v, want %v", err, errBoom)
	}
	if calls.Load() == int64(len(s)) {
		t.Errorf("TestStopOnErr: every element was accessed after an error")
	}
}

func TestLedgerFanOut(t *testing.T) {
	t.Parallel()

	src := ledger.New(decimal.NewFromInt(50))
	dsts := make([]*ledger.Ledger, 100)
	for i := range dsts {
		dsts[i] = ledger.New(decimal.Zero)
	}

	var moved atomic.Int64
	err := Access(
		context.Background(),
		dsts,
		func(ctx context.Context, i int, dst *ledger.Ledger, m Modifier[*ledger.Ledger]) error {
			ok, err := src.Transfer(dst, decimal.NewFromInt(1))
			if ok {
				moved.Add(1)
			}
			return err
		},
	)
	if err != nil {
		t.Fatalf("TestLedgerFanOut: got err == %s", err)
	}

	total := src.Balance()
	for _, d := range dsts {
		total = total.Add(d.Balance())
	}
	if !total.Equal(decimal.NewFromInt(50)) || moved.Load() != 50 {
		t.Errorf("TestLedgerFanOut: got total %s, moved %d, want 50, 50", total, moved.Load())
	}
}
