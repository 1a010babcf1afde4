// Package pool holds the types shared by the goroutine pool implementations.
package pool

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/gostdlib/internals/otel/span"
	"github.com/gostdlib/racefree"
)

// PoolType is for internal use. Please ignore.
type PoolType uint8

const (
	PTPooled  PoolType = 1
	PTLimited PoolType = 2
)

func (p PoolType) String() string {
	switch p {
	case PTPooled:
		return "pooled"
	case PTLimited:
		return "limited"
	}
	return "unknown"
}

// SubmitOptions is used internally. Please ignore.
type SubmitOptions struct {
	// Caller names the submitting function in span events.
	Caller string
	// Type is the pool type the options were collected for.
	Type PoolType
	// NonBlocking runs the job without waiting for capacity.
	NonBlocking bool
}

// CheckType returns an error if the options are not for a pool of type want. opt is the
// name of the option for the error message.
func (s *SubmitOptions) CheckType(opt string, want PoolType) error {
	if s.Type != want {
		return fmt.Errorf("cannot use %s.%s() with a %s.Pool", want, opt, s.Type)
	}
	return nil
}

// CallerName returns the Caller if set, otherwise the name of the function skip frames
// above the one calling CallerName.
func (s *SubmitOptions) CallerName(skip int) string {
	if s.Caller != "" {
		return s.Caller
	}

	pc, _, _, ok := runtime.Caller(skip + 1)
	details := runtime.FuncForPC(pc)
	if ok && details != nil {
		return details.Name()
	}
	return ""
}

// NonBlocking returns an option setter for pools of type pt.
func NonBlocking(pt PoolType) func(*SubmitOptions) error {
	return func(opt *SubmitOptions) error {
		if err := opt.CheckType("NonBlocking", pt); err != nil {
			return err
		}
		opt.NonBlocking = true
		return nil
	}
}

// Caller returns an option setter for pools of type pt.
func Caller(pt PoolType, name string) func(*SubmitOptions) error {
	return func(opt *SubmitOptions) error {
		if err := opt.CheckType("Caller", pt); err != nil {
			return err
		}
		opt.Caller = name
		return nil
	}
}

// Submission is a validated call to Submit().
type Submission struct {
	SubmitOptions

	pool    string
	start   time.Time
	caller  string
	spanner span.Span
}

// Check validates a Submit() call on the pool named name and applies its options.
// Errors are recorded on the span in ctx. Options are functions taking *SubmitOptions.
func Check[O ~func(*SubmitOptions) error](ctx context.Context, pt PoolType, name string, closed, nilJob bool, options []O) (*Submission, error) {
	s := &Submission{
		SubmitOptions: SubmitOptions{Type: pt},
		pool:          name,
		start:         time.Now(),
		spanner:       span.Get(ctx),
	}

	var err error
	switch {
	case nilJob:
		err = racefree.InvalidArgument("cannot submit a nil Job")
	case closed:
		err = racefree.InvalidOperation("cannot Submit() to a closed %s.Pool(%s)", pt, name)
	default:
		for _, o := range options {
			if oerr := o(&s.SubmitOptions); oerr != nil {
				err = racefree.InvalidArgument("%s", oerr)
				break
			}
		}
	}
	if err != nil {
		s.spanner.Error(err)
		return nil, err
	}
	// Skip Check and the pool's Submit.
	s.caller = s.CallerName(2)
	return s, nil
}

// Event records a span event named "Pool.Submit() <what>" when the span is recording.
func (s *Submission) Event(what string) {
	if !s.spanner.Span.IsRecording() {
		return
	}
	s.spanner.Event(
		"Pool.Submit() "+what,
		"pool_type", s.Type.String(),
		"caller", s.caller,
		"name", s.pool,
		"non_blocking", s.NonBlocking,
		"submit_latency_ns", time.Since(s.start),
	)
}

// Reject records an InvalidOperation error on the span and returns it.
func (s *Submission) Reject(format string, a ...any) error {
	err := racefree.InvalidOperation(format, a...)
	s.spanner.Error(err)
	return err
}

// ValidateSize returns an error if size is not a usable pool size.
func ValidateSize(size int) error {
	if size < 1 {
		return racefree.InvalidArgument("cannot have a Pool with size < 1, got %d", size)
	}
	return nil
}

// Preventer is embedded in goroutines.Pool so that only pools in this module implement it.
type Preventer interface {
	pool()
}

// Pool implements Preventer. Pool types embed it.
type Pool struct{}

//lint:ignore U1000 This is for internal use only.
func (p *Pool) pool() {}
