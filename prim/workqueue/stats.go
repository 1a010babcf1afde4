package workqueue

import (
	"sync/atomic"
	"time"
)

// Stats are the stats for a Queue.
type Stats struct {
	// Enqueued is the number of items that were added.
	Enqueued int64
	// Dequeued is the number of items that were removed.
	Dequeued int64
	// Blocked is the number of dequeue calls that had to wait because the Queue was empty.
	Blocked int64
	// MinWait is the shortest time a blocked dequeue waited.
	MinWait time.Duration
	// AvgWait is the average time a blocked dequeue waited.
	AvgWait time.Duration
	// MaxWait is the longest time a blocked dequeue waited.
	MaxWait time.Duration
}

// stats is used to atomically calculate our Queue stats.
type stats struct {
	enqueued  atomic.Int64
	dequeued  atomic.Int64
	blocked   atomic.Int64
	min       atomic.Int64
	max       atomic.Int64
	waitTotal atomic.Int64
}

// waited records a blocking dequeue that waited for d.
func (s *stats) waited(d time.Duration) {
	v := int64(d)
	if s.blocked.Add(1) == 1 {
		// First sample, min is still 0 and would never be lowered.
		s.min.CompareAndSwap(0, v)
	}
	setMin(&s.min, v)
	setMax(&s.max, v)
	s.waitTotal.Add(v)
}

func (s *stats) reset() {
	s.enqueued.Store(0)
	s.dequeued.Store(0)
	s.blocked.Store(0)
	s.min.Store(0)
	s.max.Store(0)
	s.waitTotal.Store(0)
}

func (s *stats) toStats() Stats {
	stats := Stats{
		Enqueued: s.enqueued.Load(),
		Dequeued: s.dequeued.Load(),
		Blocked:  s.blocked.Load(),
		MinWait:  time.Duration(s.min.Load()),
		MaxWait:  time.Duration(s.max.Load()),
	}
	if stats.Blocked != 0 {
		stats.AvgWait = time.Duration(s.waitTotal.Load() / stats.Blocked)
	}
	return stats
}

// setMin will set current to v if v is smaller that current.
func setMin(current *atomic.Int64, v int64) {
	for {
		c := current.Load()
		if v >= c {
			return
		}
		if current.CompareAndSwap(c, v) {
			return
		}
	}
}

// setMax will set current to v if v is bigger than current.
func setMax(current *atomic.Int64, v int64) {
	for {
		c := current.Load()
		if v <= c {
			return
		}
		if current.CompareAndSwap(c, v) {
			return
		}
	}
}
