package racefree

import (
	"errors"
	"fmt"
)

const (
	// TypeInvalidArgument is the Error.Type for a bad argument, such as a non-positive amount.
	TypeInvalidArgument = "InvalidArgument"
	// TypeInvalidOperation is the Error.Type for an operation not allowed in the current state,
	// such as an Enqueue() on a completed queue.
	TypeInvalidOperation = "InvalidOperation"
)

// Error represents a typed error that the primitives return.
// A primitive that returns an Error has not changed its state.
type Error struct {
	// Type is the type of error.
	Type string
	// Msg is the message of the error.
	Msg string
}

// Error returns the Error type and message.
func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Msg)
}

// InvalidArgument returns an Error of TypeInvalidArgument.
func InvalidArgument(format string, a ...any) error {
	return Error{Type: TypeInvalidArgument, Msg: fmt.Sprintf(format, a...)}
}

// InvalidOperation returns an Error of TypeInvalidOperation.
func InvalidOperation(format string, a ...any) error {
	return Error{Type: TypeInvalidOperation, Msg: fmt.Sprintf(format, a...)}
}

// IsInvalidArgument returns true if err is, or wraps, an InvalidArgument Error.
func IsInvalidArgument(err error) bool {
	return isType(err, TypeInvalidArgument)
}

// IsInvalidOperation returns true if err is, or wraps, an InvalidOperation Error.
func IsInvalidOperation(err error) bool {
	return isType(err, TypeInvalidOperation)
}

func isType(err error, t string) bool {
	if err == nil {
		return false
	}
	var e Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == t
}
