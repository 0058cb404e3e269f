// Package hostenv reports what the host can offer the worker pool: how many
// workers are worth starting and whether threads share memory at all.
//
// Native builds report runtime.NumCPU. Builds for GOOS=js read the
// JavaScript global scope; the browser build tag switches the lookup from
// Node's globals to navigator.hardwareConcurrency and crossOriginIsolated.
//
// On GOOS=js the Go runtime schedules every goroutine on the single thread
// the module runs on. ThreadsSupported there means the page could host
// shared-memory workers, not that pool workers run in parallel: Parallel
// mode interleaves shards on one thread and keeps the host's event loop
// responsive between them, but it does not add CPU throughput.
package hostenv
