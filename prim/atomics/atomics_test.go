package atomics

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRWValue(t *testing.T) {
	t.Parallel()

	v := RWValue[int]{}
	v.Store(1)
	ctx, cancel := context.WithCancel(context.Background())

	wg := sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := 0
			for ctx.Err() == nil {
				got := v.Load()
				if got < last {
					t.Errorf("TestRWValue: value went backwards from %d to %d", last, got)
					return
				}
				last = got
			}
		}()
	}

	// Many writers that each add one. If the load and the store were not a single step,
	// some of these would be lost.
	incr := func(i int) (int, error) {
		return i + 1, nil
	}
	storeWG := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		storeWG.Add(1)
		go func() {
			defer storeWG.Done()
			for j := 0; j < 100; j++ {
				if _, err := v.LoadReplace(incr); err != nil {
					t.Errorf("TestRWValue: LoadReplace() returned error: %s", err)
				}
			}
		}()
	}

	storeWG.Wait() // Wait for our storing routines
	cancel()

	// Now wait for everything using the values.
	wg.Wait()
	if v.Load() != 1001 {
		t.Fatalf("TestRWValue: expected 1001, got %d", v.Load())
	}
}

func TestLoadReplaceZeroValue(t *testing.T) {
	t.Parallel()

	v := RWValue[string]{}
	got, err := v.LoadReplace(func(s string) (string, error) {
		if s != "" {
			return "", errors.New("expected zero value")
		}
		return "set", nil
	})
	if err != nil {
		t.Fatalf("TestLoadReplaceZeroValue: got err == %s, want err == nil", err)
	}
	if got != "set" || v.Load() != "set" {
		t.Errorf("TestLoadReplaceZeroValue: got %q/%q, want \"set\"", got, v.Load())
	}
}

func TestLoadReplaceErrorKeepsValue(t *testing.T) {
	t.Parallel()

	v := NewRWValue(10)
	errStop := errors.New("stop")

	got, err := v.LoadReplace(func(i int) (int, error) {
		return 0, errStop
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("TestLoadReplaceErrorKeepsValue: got err == %v, want %v", err, errStop)
	}
	if got != 10 || v.Load() != 10 {
		t.Errorf("TestLoadReplaceErrorKeepsValue: got %d/%d, want 10", got, v.Load())
	}
}
