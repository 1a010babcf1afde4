/*
Package racefree holds the error types shared by the shared-state primitives found
under prim/. The primitives themselves live in their own packages so that they can
be used without pulling in each other:

  - prim/ledger: a decimal balance with deposit, conditional withdraw and transfer.
  - prim/counter: an int64 counter that never loses an update.
  - prim/memo: a memoizing cache that computes every key at most once.
  - prim/logsink: a buffered line sink with an atomic flush and a background flusher.
  - prim/workqueue: an unbounded blocking FIFO queue with graceful completion.

Every compound operation on these types (check a balance then subtract it, check a map
then start a computation, read a buffer then clear it, check for an item then wait) runs
inside one critical section guarded by one synchronization handle per instance.

The helpers in prim/wait, prim/slices and prim/maps run work on the goroutine pools
in goroutines/. The racedetective command in cmd/ uses them to drive every primitive
from many goroutines and reports any violated invariant.
*/
package racefree
