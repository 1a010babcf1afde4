package maps

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gostdlib/racefree/goroutines/pooled"
	"github.com/gostdlib/racefree/prim/memo"
	"github.com/kylelemons/godebug/pretty"
)

func TestAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, err := pooled.New("maps", 4)
	if err != nil {
		panic(err)
	}
	defer p.Close()

	tests := []struct {
		desc    string
		m       map[string]int
		a       Accessor[string, int]
		options []Option
		want    map[string]int
		err     bool
	}{
		{
			desc: "empty map",
			m:    map[string]int{},
			a:    func(ctx context.Context, k string, v int, m Modifier[int]) error { return errors.New("never called") },
			want: map[string]int{},
		},
		{
			desc: "double every value",
			m:    map[string]int{"a": 1, "b": 2, "c": 3},
			a: func(ctx context.Context, k string, v int, m Modifier[int]) error {
				m(v * 2)
				return nil
			},
			want: map[string]int{"a": 2, "b": 4, "c": 6},
		},
		{
			desc: "double every value on a pool",
			m:    map[string]int{"a": 1, "b": 2, "c": 3},
			a: func(ctx context.Context, k string, v int, m Modifier[int]) error {
				m(v * 2)
				return nil
			},
			options: []Option{WithPool(p)},
			want:    map[string]int{"a": 2, "b": 4, "c": 6},
		},
		{
			desc: "error on one key",
			m:    map[string]int{"a": 1, "b": 2, "c": 3},
			a: func(ctx context.Context, k string, v int, m Modifier[int]) error {
				if k == "b" {
					return fmt.Errorf("mock error")
				}
				m(v + 1)
				return nil
			},
			want: map[string]int{"a": 2, "b": 2, "c": 4},
			err:  true,
		},
	}

	for _, test := range tests {
		err := Access(ctx, test.m, test.a, test.options...)
		switch {
		case err == nil && test.err:
			t.Errorf("TestAccess(%s): want err != nil, got err == nil", test.desc)
			continue
		case err != nil && !test.err:
			t.Errorf("TestAccess(%s): got err == %s, want err == nil", test.desc, err)
			continue
		}

		if diff := pretty.Compare(test.want, test.m); diff != "" {
			t.Errorf("TestAccess(%s): -want/+got:\n%s", test.desc, diff)
		}
	}
}

func TestAccessMemo(t *testing.T) {
	t.Parallel()

	c, err := memo.New(memo.HashString)
	if err != nil {
		t.Fatal(err)
	}

	m := map[string]int{}
	want := map[string]int{}
	for i := 0; i < 500; i++ {
		k := fmt.Sprintf("key-%d", i%50)
		m[k] = 0
		want[k] = memo.HashString(k)
	}

	err = Access(
		context.Background(),
		m,
		func(ctx context.Context, k string, v int, mod Modifier[int]) error {
			mod(c.GetOrCompute(k))
			return nil
		},
	)
	if err != nil {
		t.Fatalf("TestAccessMemo: got err == %s", err)
	}
	if diff := pretty.Compare(want, m); diff != "" {
		t.Errorf("TestAccessMemo: -want/+got:\n%s", diff)
	}
	if c.ComputeCount() != 50 {
		t.Errorf("TestAccessMemo: ComputeCount() == %d, want 50", c.ComputeCount())
	}
}
