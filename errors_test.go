package racefree

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc    string
		err     error
		wantArg bool
		wantOp  bool
	}{
		{desc: "nil", err: nil},
		{desc: "plain error", err: errors.New("boom")},
		{desc: "invalid argument", err: InvalidArgument("amount %d must be positive", -1), wantArg: true},
		{desc: "invalid operation", err: InvalidOperation("queue is completed"), wantOp: true},
		{desc: "wrapped invalid argument", err: fmt.Errorf("deposit: %w", InvalidArgument("zero")), wantArg: true},
		{desc: "wrapped invalid operation", err: fmt.Errorf("enqueue: %w", InvalidOperation("done")), wantOp: true},
	}

	for _, test := range tests {
		if got := IsInvalidArgument(test.err); got != test.wantArg {
			t.Errorf("TestErrorTypes(%s): IsInvalidArgument() got %v, want %v", test.desc, got, test.wantArg)
		}
		if got := IsInvalidOperation(test.err); got != test.wantOp {
			t.Errorf("TestErrorTypes(%s): IsInvalidOperation() got %v, want %v", test.desc, got, test.wantOp)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	err := InvalidArgument("amount %s must be positive", "0")
	want := "InvalidArgument: amount 0 must be positive"
	if err.Error() != want {
		t.Errorf("TestErrorMessage: got %q, want %q", err.Error(), want)
	}
}
