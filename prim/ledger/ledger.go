/*
Package ledger provides a decimal balance that can be deposited into, withdrawn from and
transferred out of by many goroutines at once.

	a := ledger.New(decimal.NewFromInt(100), ledger.WithName("a"))
	b := ledger.New(decimal.Zero, ledger.WithName("b"))

	ok, err := a.Transfer(b, decimal.NewFromInt(30))
	if err != nil {
		// Only happens on a non-positive amount or a nil destination.
	}
	if !ok {
		// a did not hold 30 at the instant of the withdrawal.
	}

A Withdraw checks the balance and subtracts from it as one step, so no withdrawal is ever
approved from a stale balance and the balance never drops below zero when it started at or
above zero.

A Transfer is a Withdraw on the source followed by a Deposit on the destination. Each half is
atomic, the pair is not: a reader may see the money leave the source before it arrives at the
destination, but the money is never lost or created. Because a Ledger only ever holds its own
lock, two transfers running in opposite directions can never deadlock.
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/gostdlib/racefree"
	"github.com/gostdlib/racefree/prim/atomics"
	"github.com/johnsiilver/calloptions"
	"github.com/shopspring/decimal"
)

// errInsufficient stops a LoadReplace without storing anything.
var errInsufficient = errors.New("insufficient funds")

// Ledger holds a single balance. Reads are lock free, writes are serialized.
type Ledger struct {
	balance *atomics.RWValue[decimal.Decimal]
	name    string
}

type ledgerOptions struct {
	name string
}

// Option is an option for New().
type Option interface {
	ledger()
}

// WithName names the Ledger. The name is only used in error messages and by String().
func WithName(name string) interface {
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
				case *ledgerOptions:
					t.name = name
					return nil
				}
				return fmt.Errorf("WithName can only be used with ledger.Option")
			},
		),
	}
}

// New creates a Ledger with the initial balance.
func New(initial decimal.Decimal, options ...Option) *Ledger {
	opts := ledgerOptions{}
	if err := calloptions.ApplyOptions(&opts, options); err != nil {
		// Our options can only fail when handed a foreign option type, which the type system prevents.
		panic(fmt.Sprintf("bug: ledger.New() options failed: %s", err))
	}

	return &Ledger{
		balance: atomics.NewRWValue(initial),
		name:    opts.name,
	}
}

// Name returns the name given by WithName().
func (l *Ledger) Name() string {
	return l.name
}

// String implements fmt.Stringer.
func (l *Ledger) String() string {
	if l.name == "" {
		return l.Balance().String()
	}
	return fmt.Sprintf("%s(%s)", l.name, l.Balance().String())
}

// Balance returns the current balance. It never observes a value mid-update.
func (l *Ledger) Balance() decimal.Decimal {
	return l.balance.Load()
}

// Deposit adds amount to the balance. An amount <= 0 returns an InvalidArgument error.
func (l *Ledger) Deposit(amount decimal.Decimal) error {
	if err := l.validate("Deposit", amount); err != nil {
		return err
	}

	l.balance.LoadReplace(
		func(b decimal.Decimal) (decimal.Decimal, error) {
			return b.Add(amount), nil
		},
	)
	return nil
}

// Withdraw subtracts amount if the balance is at least amount and returns true. If the
// balance is smaller, nothing changes and this returns false. The check and the subtraction
// happen under the same lock. An amount <= 0 returns an InvalidArgument error.
func (l *Ledger) Withdraw(amount decimal.Decimal) (bool, error) {
	if err := l.validate("Withdraw", amount); err != nil {
		return false, err
	}

	_, err := l.balance.LoadReplace(
		func(b decimal.Decimal) (decimal.Decimal, error) {
			if b.LessThan(amount) {
				return b, errInsufficient
			}
			return b.Sub(amount), nil
		},
	)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errInsufficient):
		return false, nil
	}
	return false, err
}

// Transfer withdraws amount from l and, only if that succeeded, deposits it into dst.
// It returns true if the money moved. Both ledgers are never locked at the same time.
func (l *Ledger) Transfer(dst *Ledger, amount decimal.Decimal) (bool, error) {
	if dst == nil {
		return false, racefree.InvalidArgument("%sTransfer destination cannot be nil", l.prefix())
	}

	ok, err := l.Withdraw(amount)
	if err != nil || !ok {
		return false, err
	}
	// amount already passed validation in Withdraw, so Deposit cannot fail.
	if err := dst.Deposit(amount); err != nil {
		panic(fmt.Sprintf("bug: Deposit of validated amount %s failed: %s", amount, err))
	}
	return true, nil
}

func (l *Ledger) validate(op string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return racefree.InvalidArgument("%s%s amount must be positive, got %s", l.prefix(), op, amount)
	}
	return nil
}

func (l *Ledger) prefix() string {
	if l.name == "" {
		return ""
	}
	return "ledger(" + l.name + "): "
}
