// Package prim holds the shared-state primitives in its sub-packages, plus the
// helpers used to drive them from many goroutines.
//
// The primitives (atomics, counter, ledger, memo, logsink, workqueue) each guard one
// block of state with one synchronization handle. The helpers (wait, slices, maps)
// launch work on a goroutines.Pool, record OTEL span events and collect errors.
package prim
