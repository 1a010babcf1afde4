/*
Package logsink provides a Sink that buffers timestamped log lines and flushes them into records.

Many goroutines can call Log() while another calls Flush(). Capturing the buffer, clearing it and
storing the record happen in one critical section, so every line ends up in exactly one record and
is never split between two.

A Sink can flush itself on an interval:

	s := logsink.New()
	af, err := s.StartAutoFlush(100 * time.Millisecond)
	if err != nil {
		// interval <= 0 or an auto flush is already running.
	}

	s.Log("starting")
	...
	s.Stop()  // Signals the flusher, does not wait.
	af.Wait() // Returns after the final flush.
*/
package logsink

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gostdlib/racefree"
	"github.com/johnsiilver/calloptions"
	"go.uber.org/zap"
)

// TimeFormat is the layout of the timestamp that prefixes every line.
const TimeFormat = "15:04:05.000"

// Sink is a buffered, append-only log.
type Sink struct {
	now func() time.Time
	log *zap.Logger

	mu      sync.Mutex
	pending strings.Builder
	flushed []string
	auto    *AutoFlush
}

type sinkOptions struct {
	now func() time.Time
	log *zap.Logger
}

// Option is an option for New().
type Option interface {
	logsink()
}

// WithClock replaces time.Now as the source of line timestamps.
func WithClock(now func() time.Time) interface {
	Option
	calloptions.CallOption
} {
	return struct {
		Option
		calloptions.CallOption
	}{
		CallOption: calloptions.New(
			func(a any) error {
				switch t := a.(type) {
				case *sinkOptions:
					if now == nil {
						return fmt.Errorf("WithClock cannot be passed a nil func")
					}
					t.now = now
					return nil
				}
				return fmt.Errorf("WithClock can only be used with logsink.Option")
			},
		),
	}
}

// WithLogger sets a zap.Logger for diagnostics about auto flushing.
func WithLogger(l *zap.Logger) interface {
	Option
	calloptions.CallOption
} {
	return struct {
		Option
		calloptions.CallOption
	}{
		CallOption: calloptions.New(
			func(a any) error {
				switch t := a.(type) {
				case *sinkOptions:
					if l == nil {
						return fmt.Errorf("WithLogger cannot be passed a nil *zap.Logger")
					}
					t.log = l
					return nil
				}
				return fmt.Errorf("WithLogger can only be used with logsink.Option")
			},
		),
	}
}

// New creates a new Sink. It panics if an option is passed a nil value.
func New(options ...Option) *Sink {
	opts := sinkOptions{now: time.Now, log: zap.NewNop()}
	if err := calloptions.ApplyOptions(&opts, options); err != nil {
		panic(fmt.Sprintf("logsink.New(): %s", err))
	}
	return &Sink{now: opts.now, log: opts.log}
}

// Log appends "[HH:MM:SS.mmm] message\n" to the buffer.
func (s *Sink) Log(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending.WriteByte('[')
	s.pending.WriteString(s.now().Format(TimeFormat))
	s.pending.WriteString("] ")
	s.pending.WriteString(message)
	s.pending.WriteByte('\n')
}

// Flush empties the buffer and stores its contents as one record, which it also returns.
// A buffer that is empty or only whitespace is cleared, not recorded, and "" is returned.
func (s *Sink) Flush() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending.Len() == 0 {
		return ""
	}
	rec := s.pending.String()
	s.pending.Reset()

	if strings.TrimSpace(rec) == "" {
		return ""
	}
	s.flushed = append(s.flushed, rec)
	return rec
}

// FlushedMessages returns a copy of all records in the order they were flushed.
func (s *Sink) FlushedMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.flushed))
	copy(out, s.flushed)
	return out
}

// Reset clears the buffer and all records. A running auto flush is not affected.
// Only meant for tests that reuse a Sink.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending.Reset()
	s.flushed = nil
}

// AutoFlush is a handle to a running auto flush started by Sink.StartAutoFlush().
type AutoFlush struct {
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Done returns a channel that is closed once the final flush after Stop() has finished.
func (a *AutoFlush) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the final flush after Stop() has finished.
func (a *AutoFlush) Wait() {
	<-a.done
}

func (a *AutoFlush) signal() {
	a.stopOnce.Do(func() { close(a.stop) })
}

// StartAutoFlush starts a goroutine that calls Flush() every interval until Stop() is called,
// then flushes one last time. Only one auto flush can run per Sink. An interval <= 0 returns an
// InvalidArgument error and a second start while one is running returns an InvalidOperation error.
func (s *Sink) StartAutoFlush(interval time.Duration) (*AutoFlush, error) {
	if interval <= 0 {
		return nil, racefree.InvalidArgument("StartAutoFlush interval must be > 0, got %v", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.auto != nil {
		return nil, racefree.InvalidOperation("StartAutoFlush called while an auto flush is already running")
	}

	a := &AutoFlush{
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.auto = a

	go s.autoFlush(a)
	return a, nil
}

func (s *Sink) autoFlush(a *AutoFlush) {
	defer close(a.done)

	s.log.Debug("logsink: auto flush started", zap.Duration("interval", a.interval))

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush()
		case <-a.stop:
			rec := s.Flush()
			s.log.Debug("logsink: auto flush stopped", zap.Int("finalBytes", len(rec)))
			return
		}
	}
}

// Stop signals the running auto flush to do a final flush and exit. It does not wait, use
// AutoFlush.Wait() for that. Calling Stop() with nothing running does nothing. After Stop()
// a new auto flush may be started.
func (s *Sink) Stop() {
	s.mu.Lock()
	a := s.auto
	s.auto = nil
	s.mu.Unlock()

	if a != nil {
		a.signal()
	}
}
