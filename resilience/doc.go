// Package resilience holds the fault-tolerance primitives the executor wraps
// around its collaborators:
//
//   - Retry re-attempts transient failures such as a launch racing a binary
//     that is still being written (ETXTBSY).
//
//   - Bulkhead bounds the number of concurrently running child processes.
//
//   - CircuitBreaker stops invoking a diagnostic handler that keeps failing.
//
//     bh := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "runs", MaxConcurrent: 4})
//     err := bh.Execute(ctx, func() error { ... })
package resilience
