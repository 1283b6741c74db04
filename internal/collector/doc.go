// Package collector owns the background metrics collection loop. A Collector
// polls an injected Source on a fixed interval and publishes each snapshot to
// the push registry as a metrics_update envelope — it knows nothing about
// what the data is or how it was produced.
//
// Lifecycle: Start launches exactly one loop goroutine and is idempotent;
// Stop cancels it and blocks until the goroutine has exited, also
// idempotently. Fetch errors are logged and retried on the next tick
// indefinitely; only cancellation ends the loop.
package collector
