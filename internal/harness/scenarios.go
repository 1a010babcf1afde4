package harness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gostdlib/racefree"
	"github.com/gostdlib/racefree/goroutines"
	"github.com/gostdlib/racefree/prim/counter"
	"github.com/gostdlib/racefree/prim/ledger"
	"github.com/gostdlib/racefree/prim/maps"
	"github.com/gostdlib/racefree/prim/logsink"
	"github.com/gostdlib/racefree/prim/memo"
	"github.com/gostdlib/racefree/prim/slices"
	"github.com/gostdlib/racefree/prim/wait"
	"github.com/gostdlib/racefree/prim/workqueue"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// transfers is the number of 1 unit transfers the ledger scenario attempts from a ledger holding transferFunds.
	transfers     = 1000
	transferFunds = 100
	// memoKeys is the number of distinct keys the memo scenario computes after a Clear().
	memoKeys = 16
	// memoDelay is how long each memo computation takes.
	memoDelay = 5 * time.Millisecond
)

func init() {
	register(Scenario{
		Name:        "counter",
		Description: "workers x iterations concurrent increments must all be counted",
		Run:         runCounter,
	})
	register(Scenario{
		Name:        "ledger",
		Description: "concurrent deposits, withdrawals and transfers must never lose, create or overdraw funds",
		Run:         runLedger,
	})
	register(Scenario{
		Name:        "memo",
		Description: "concurrent lookups of one key must compute it exactly once",
		Run:         runMemo,
	})
	register(Scenario{
		Name:        "logsink",
		Description: "concurrent logging with auto flush must put every line in exactly one record",
		Run:         runLogSink,
	})
	register(Scenario{
		Name:        "workqueue",
		Description: "parked consumers must receive every enqueued item exactly once and exit on completion",
		Run:         runWorkQueue,
	})
}

// watch calls check in a loop on its own goroutine until the returned stop func is called.
// stop returns the first error check returned, or nil.
func watch(check func() error) (stop func() error) {
	done := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		for {
			select {
			case <-done:
				result <- nil
				return
			default:
			}
			if err := check(); err != nil {
				result <- err
				return
			}
		}
	}()
	return func() error {
		close(done)
		return <-result
	}
}

func runCounter(ctx context.Context, env Env) (string, error) {
	workers, iters := env.Config.Workers, env.Config.Iterations

	c := &counter.Counter{}
	g := wait.Group{Name: "counter.Increment", Pool: env.Pool}
	for w := 0; w < workers; w++ {
		g.Go(ctx, func(ctx context.Context) error {
			for i := 0; i < iters; i++ {
				c.Increment()
			}
			return nil
		})
	}
	if err := g.Wait(ctx); err != nil {
		return "", err
	}

	want := int64(workers) * int64(iters)
	if got := c.Count(); got != want {
		return fmt.Sprintf("count=%d want=%d", got, want), violation("Increment() lost updates: count %d, want %d", got, want)
	}

	// Mixed signs: each iteration adds 3 and takes 1 away.
	c.Reset()
	g = wait.Group{Name: "counter.IncrementBy", Pool: env.Pool}
	for w := 0; w < workers; w++ {
		g.Go(ctx, func(ctx context.Context) error {
			for i := 0; i < iters; i++ {
				c.IncrementBy(3)
				c.IncrementBy(-1)
			}
			return nil
		})
	}
	if err := g.Wait(ctx); err != nil {
		return "", err
	}

	wantBy := 2 * want
	if got := c.Count(); got != wantBy {
		return fmt.Sprintf("count=%d want=%d", got, wantBy), violation("IncrementBy() lost updates: count %d, want %d", got, wantBy)
	}
	return fmt.Sprintf("count=%d incrementBy=%d", want, wantBy), nil
}

func runLedger(ctx context.Context, env Env) (string, error) {
	dwDetail, err := ledgerDepositWithdraw(ctx, env)
	if err != nil {
		return dwDetail, err
	}
	tDetail, err := ledgerTransfers(ctx, env)
	return dwDetail + " " + tDetail, err
}

// ledgerDepositWithdraw checks that balance == initial + deposits - successful withdrawals
// and that the balance is never seen below zero.
func ledgerDepositWithdraw(ctx context.Context, env Env) (string, error) {
	workers, iters := env.Config.Workers, env.Config.Iterations

	initial := decimal.NewFromInt(1000)
	l := ledger.New(initial, ledger.WithName("account"))
	one, three := decimal.NewFromInt(1), decimal.NewFromInt(3)

	stop := watch(func() error {
		if b := l.Balance(); b.IsNegative() {
			return violation("%s observed a negative balance %s", l.Name(), b)
		}
		return nil
	})

	withdrawn := &counter.Counter{}
	g := wait.Group{Name: "ledger.DepositWithdraw", Pool: env.Pool}
	for w := 0; w < workers; w++ {
		g.Go(ctx, func(ctx context.Context) error {
			for i := 0; i < iters; i++ {
				if err := l.Deposit(one); err != nil {
					return err
				}
				ok, err := l.Withdraw(three)
				if err != nil {
					return err
				}
				if ok {
					withdrawn.IncrementBy(3)
				}
			}
			return nil
		})
	}
	gErr := g.Wait(ctx)
	if err := stop(); err != nil {
		return "", err
	}
	if gErr != nil {
		return "", gErr
	}

	deposited := decimal.NewFromInt(int64(workers) * int64(iters))
	want := initial.Add(deposited).Sub(decimal.NewFromInt(withdrawn.Count()))
	if got := l.Balance(); !got.Equal(want) {
		return fmt.Sprintf("balance=%s want=%s", got, want), violation("%s balance %s, want %s", l.Name(), got, want)
	}
	return fmt.Sprintf("balance=%s withdrawn=%d", l.Balance(), withdrawn.Count()), nil
}

// ledgerTransfers moves 1 unit at a time from a to b and checks that money is never created,
// a never goes negative and b ends with exactly the number of successful transfers.
func ledgerTransfers(ctx context.Context, env Env) (string, error) {
	total := decimal.NewFromInt(transferFunds)
	a := ledger.New(total, ledger.WithName("a"))
	b := ledger.New(decimal.Zero, ledger.WithName("b"))
	one := decimal.NewFromInt(1)

	stop := watch(func() error {
		// b only grows and a only shrinks, read b first so in flight money reads as missing.
		bb := b.Balance()
		ab := a.Balance()
		switch {
		case ab.IsNegative():
			return violation("%s went negative", a)
		case ab.Add(bb).GreaterThan(total):
			return violation("a + b == %s, more than the %s that exists", ab.Add(bb), total)
		}
		return nil
	})

	moved := make([]bool, transfers)
	err := slices.Access(
		ctx,
		moved,
		func(ctx context.Context, i int, _ bool, m slices.Modifier[bool]) error {
			ok, err := a.Transfer(b, one)
			m(ok)
			return err
		},
		slices.WithPool(env.Pool),
	)
	if sErr := stop(); sErr != nil {
		return "", sErr
	}
	if err != nil {
		return "", err
	}

	succeeded := 0
	for _, ok := range moved {
		if ok {
			succeeded++
		}
	}

	detail := fmt.Sprintf("a=%s b=%s transfers=%d", a.Balance(), b.Balance(), succeeded)
	if sum := a.Balance().Add(b.Balance()); !sum.Equal(total) {
		return detail, violation("a + b == %s after transfers, want %s", sum, total)
	}
	if !b.Balance().Equal(decimal.NewFromInt(int64(succeeded))) {
		return detail, violation("b == %s, want the %d successful transfers", b.Balance(), succeeded)
	}
	if succeeded != transferFunds {
		return detail, violation("%d transfers succeeded, want %d", succeeded, transferFunds)
	}
	return detail, nil
}

func runMemo(ctx context.Context, env Env) (string, error) {
	workers := env.Config.Workers

	c, err := memo.New(memo.Expensive(memoDelay), memo.WithLogger(env.Log))
	if err != nil {
		return "", err
	}

	const shared = "shared"
	want := memo.HashString(shared)
	bad := goroutines.Errors{}

	g := wait.Group{Name: "memo.SameKey", Pool: env.Pool}
	for w := 0; w < workers; w++ {
		g.Go(ctx, func(ctx context.Context) error {
			if got := c.GetOrCompute(shared); got != want {
				bad.Record(violation("GetOrCompute(%q) == %d, want %d", shared, got, want))
			}
			return nil
		})
	}
	if err := g.Wait(ctx); err != nil {
		return "", err
	}
	if err := bad.Err(); err != nil {
		return "", err
	}
	if n := c.ComputeCount(); n != 1 {
		return fmt.Sprintf("computeCount=%d", n), violation("%d callers of one key caused %d computations, want 1", workers, n)
	}

	c.Clear()
	if n := c.ComputeCount(); n != 0 {
		return "", violation("ComputeCount() == %d after Clear(), want 0", n)
	}

	g = wait.Group{Name: "memo.DistinctKeys", Pool: env.Pool}
	for w := 0; w < workers; w++ {
		g.Go(ctx, func(ctx context.Context) error {
			for k := 0; k < memoKeys; k++ {
				key := fmt.Sprintf("key-%d", (k+w)%memoKeys)
				if got := c.GetOrCompute(key); got != memo.HashString(key) {
					bad.Record(violation("GetOrCompute(%q) == %d, want %d", key, got, memo.HashString(key)))
				}
			}
			return nil
		})
	}
	if err := g.Wait(ctx); err != nil {
		return "", err
	}
	if err := bad.Err(); err != nil {
		return "", err
	}
	if n := c.ComputeCount(); n != memoKeys {
		return fmt.Sprintf("computeCount=%d", n), violation("%d distinct keys caused %d computations", memoKeys, n)
	}

	// Every key is cached now, reading them all again in parallel must not compute anything.
	cached := make(map[string]int, memoKeys)
	for k := 0; k < memoKeys; k++ {
		cached[fmt.Sprintf("key-%d", k)] = 0
	}
	err = maps.Access(
		ctx,
		cached,
		func(ctx context.Context, key string, _ int, m maps.Modifier[int]) error {
			m(c.GetOrCompute(key))
			return nil
		},
		maps.WithPool(env.Pool),
	)
	if err != nil {
		return "", err
	}
	for key, v := range cached {
		if v != memo.HashString(key) {
			return "", violation("cached GetOrCompute(%q) == %d, want %d", key, v, memo.HashString(key))
		}
	}
	if n := c.ComputeCount(); n != memoKeys {
		return fmt.Sprintf("computeCount=%d", n), violation("reading cached keys raised ComputeCount() to %d, want %d", n, memoKeys)
	}
	return fmt.Sprintf("callers=%d sameKeyComputes=1 distinctKeyComputes=%d", workers, memoKeys), nil
}

func runLogSink(ctx context.Context, env Env) (string, error) {
	workers, iters := env.Config.Workers, env.Config.Iterations

	s := logsink.New(logsink.WithLogger(env.Log))
	af, err := s.StartAutoFlush(env.Config.FlushInterval)
	if err != nil {
		return "", err
	}

	g := wait.Group{Name: "logsink.Log", Pool: env.Pool}
	for w := 0; w < workers; w++ {
		g.Go(ctx, func(ctx context.Context) error {
			for i := 0; i < iters; i++ {
				s.Log(fmt.Sprintf("w%d-m%d", w, i))
			}
			return nil
		})
	}
	gErr := g.Wait(ctx)
	s.Stop()

	select {
	case <-af.Done():
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if gErr != nil {
		return "", gErr
	}

	recs := s.FlushedMessages()
	seen := make([][]int, workers)
	for w := range seen {
		seen[w] = make([]int, iters)
	}
	last := make([]int, workers)
	for w := range last {
		last[w] = -1
	}

	for _, rec := range recs {
		if !strings.HasSuffix(rec, "\n") {
			return "", violation("record does not end in a full line: %q", tail(rec))
		}
		for _, line := range strings.Split(strings.TrimSuffix(rec, "\n"), "\n") {
			_, msg, ok := strings.Cut(line, "] ")
			if !ok {
				return "", violation("split or garbled line %q", line)
			}
			var w, i int
			if _, err := fmt.Sscanf(msg, "w%d-m%d", &w, &i); err != nil || w < 0 || w >= workers || i < 0 || i >= iters {
				return "", violation("split or garbled message %q", msg)
			}
			seen[w][i]++
			if i <= last[w] {
				return "", violation("worker %d line %d flushed after line %d", w, i, last[w])
			}
			last[w] = i
		}
	}

	for w := range seen {
		for i, n := range seen[w] {
			if n != 1 {
				return "", violation("message w%d-m%d appeared in %d records, want 1", w, i, n)
			}
		}
	}
	return fmt.Sprintf("lines=%d records=%d", workers*iters, len(recs)), nil
}

// tail returns the end of a long record for error messages.
func tail(s string) string {
	const keep = 64
	if len(s) <= keep {
		return s
	}
	return "..." + s[len(s)-keep:]
}

func runWorkQueue(ctx context.Context, env Env) (string, error) {
	consumers, items := env.Config.Workers, env.Config.Iterations

	q := workqueue.New[int]()
	got := make([][]int, consumers)

	g := wait.Group{Name: "workqueue.Consumers", Pool: env.Pool}
	for c := 0; c < consumers; c++ {
		g.Go(ctx, func(ctx context.Context) error {
			for {
				v, ok, err := q.DequeueCtx(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				got[c] = append(got[c], v)
			}
		})
	}

	// Every consumer must be parked before anything is enqueued, otherwise a lost wakeup
	// could go unnoticed.
	if err := waitParked(ctx, q, consumers); err != nil {
		q.Complete()
		return "", multierror.Append(err, g.Wait(ctx)).ErrorOrNil()
	}
	env.Log.Debug("consumers parked", zap.Int("consumers", consumers))

	for i := 1; i <= items; i++ {
		if err := q.Enqueue(i); err != nil {
			q.Complete()
			return "", multierror.Append(err, g.Wait(ctx)).ErrorOrNil()
		}
	}
	q.Complete()
	if err := g.Wait(ctx); err != nil {
		return "", err
	}

	counts := make([]int, items+1)
	for _, vals := range got {
		for _, v := range vals {
			if v < 1 || v > items {
				return "", violation("dequeued %d, which was never enqueued", v)
			}
			counts[v]++
		}
	}
	for v := 1; v <= items; v++ {
		if counts[v] != 1 {
			return "", violation("item %d was dequeued %d times, want 1", v, counts[v])
		}
	}

	// A completed, drained queue must answer immediately.
	drained := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue()
		drained <- ok
	}()
	select {
	case ok := <-drained:
		if ok {
			return "", violation("Dequeue() on a drained queue returned an item")
		}
	case <-time.After(time.Second):
		return "", violation("Dequeue() on a completed, drained queue blocked")
	}

	if err := q.Enqueue(0); !racefree.IsInvalidOperation(err) {
		return "", violation("Enqueue() after Complete() returned %v, want InvalidOperation", err)
	}

	st := q.Stats()
	if st.Enqueued != int64(items) || st.Dequeued != int64(items) {
		return "", violation("stats enqueued=%d dequeued=%d, want %d", st.Enqueued, st.Dequeued, items)
	}
	return fmt.Sprintf("items=%d consumers=%d blocked=%d maxWait=%v", items, consumers, st.Blocked, st.MaxWait), nil
}

// waitParked polls with exponential backoff until n consumers are blocked in q.
func waitParked(ctx context.Context, q *workqueue.Queue[int], n int) error {
	op := func() error {
		if w := q.Waiting(); w != n {
			return fmt.Errorf("%d of %d consumers waiting", w, n)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("consumers never parked: %w", err)
	}
	return nil
}
