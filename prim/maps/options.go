package maps

import (
	"fmt"

	"github.com/gostdlib/racefree/goroutines"
	"github.com/johnsiilver/calloptions"
)

// WithStopOnErr causes the operation to stop if an error occurs. Since operations are parallel,
// this may not stop all operations.
func WithStopOnErr() interface {
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
				case *mapOptions:
					t.stopOnErr = true
					return nil
				}
				return fmt.Errorf("WithStopOnErr can only be used with maps.Option")
			},
		),
	}
}

// WithPool sets the goroutines.Pool to run on and the submit options used with it.
// The Pool is not closed when the call returns.
func WithPool(pool goroutines.Pool, options ...goroutines.SubmitOption) interface {
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
				case *mapOptions:
					if pool == nil {
						return fmt.Errorf("WithPool cannot be passed a nil goroutines.Pool")
					}
					t.pool = pool
					t.poolOptions = options
					return nil
				}
				return fmt.Errorf("WithPool can only be used with maps.Option")
			},
		),
	}
}
