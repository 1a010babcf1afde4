package counter

import (
	"sync"
	"testing"
)

func TestCounterConcurrentIncrement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc    string
		workers int
		each    int
	}{
		{desc: "single goroutine", workers: 1, each: 1000},
		{desc: "10 goroutines x 10,000", workers: 10, each: 10_000},
		{desc: "1000 goroutines x 1", workers: 1000, each: 1},
	}

	for _, test := range tests {
		c := &Counter{}

		wg := sync.WaitGroup{}
		for i := 0; i < test.workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < test.each; j++ {
					c.Increment()
				}
			}()
		}
		wg.Wait()

		want := int64(test.workers * test.each)
		if c.Count() != want {
			t.Errorf("TestCounterConcurrentIncrement(%s): got %d, want %d", test.desc, c.Count(), want)
		}
	}
}

func TestCounterIncrementBy(t *testing.T) {
	t.Parallel()

	c := &Counter{}

	wg := sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.IncrementBy(7)
		}()
		go func() {
			defer wg.Done()
			c.IncrementBy(-3)
		}()
	}
	wg.Wait()

	if c.Count() != 400 {
		t.Errorf("TestCounterIncrementBy: got %d, want 400", c.Count())
	}
}

func TestCounterReturnsNewValue(t *testing.T) {
	t.Parallel()

	c := &Counter{}
	if got := c.Increment(); got != 1 {
		t.Errorf("TestCounterReturnsNewValue: Increment() got %d, want 1", got)
	}
	if got := c.IncrementBy(41); got != 42 {
		t.Errorf("TestCounterReturnsNewValue: IncrementBy(41) got %d, want 42", got)
	}
}

func TestCounterReset(t *testing.T) {
	t.Parallel()

	c := &Counter{}
	c.IncrementBy(99)
	c.Reset()
	if c.Count() != 0 {
		t.Errorf("TestCounterReset: got %d, want 0", c.Count())
	}
	c.Increment()
	if c.Count() != 1 {
		t.Errorf("TestCounterReset: after reset and increment got %d, want 1", c.Count())
	}
}
