package workqueue

import (
	"fmt"
	"sync"
	"testing"
)

var shapes = []struct {
	producers, consumers int
}{
	{1, 1},
	{1, 8},
	{8, 1},
	{8, 8},
}

// BenchmarkProducerConsumer moves b.N items through a Queue. A buffered channel with the
// same shape is measured alongside as a baseline.
func BenchmarkProducerConsumer(b *testing.B) {
	for _, s := range shapes {
		name := fmt.Sprintf("p%d-c%d", s.producers, s.consumers)

		b.Run("queue/"+name, func(b *testing.B) {
			b.ReportAllocs()
			q := New[int]()
			got := pump(b.N, s.producers, s.consumers,
				func(v int) {
					if err := q.Enqueue(v); err != nil {
						panic(err)
					}
				},
				q.Complete,
				q.Dequeue,
			)
			if got != b.N {
				b.Fatalf("BenchmarkProducerConsumer(queue/%s): dequeued %d items, want %d", name, got, b.N)
			}
		})

		b.Run("chan/"+name, func(b *testing.B) {
			b.ReportAllocs()
			ch := make(chan int, 1024)
			got := pump(b.N, s.producers, s.consumers,
				func(v int) { ch <- v },
				func() { close(ch) },
				func() (int, bool) {
					v, ok := <-ch
					return v, ok
				},
			)
			if got != b.N {
				b.Fatalf("BenchmarkProducerConsumer(chan/%s): received %d items, want %d", name, got, b.N)
			}
		})
	}
}

// pump splits n items over the producers, drains them with the consumers and returns
// how many items the consumers saw.
func pump(n, producers, consumers int, put func(int), done func(), take func() (int, bool)) int {
	counts := make([]int, consumers)
	cwg := sync.WaitGroup{}
	for c := 0; c < consumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				if _, ok := take(); !ok {
					return
				}
				counts[c]++
			}
		}()
	}

	pwg := sync.WaitGroup{}
	for p := 0; p < producers; p++ {
		pwg.Add(1)
		go func() {
			defer pwg.Done()
			for i := p; i < n; i += producers {
				put(i)
			}
		}()
	}
	pwg.Wait()
	done()
	cwg.Wait()

	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}
