// Package zkwasm exposes a zero-knowledge toolkit to sandboxed hosts.
//
// One proving engine backs every call. A Context fixes how engine work is
// scheduled for the whole session: Serial runs it inline on the calling
// goroutine, Parallel shards it across a lazily started worker pool. Results
// do not depend on the mode or the pool size.
//
// Hosts call Load once at module start and then either the typed methods of
// Bindings or Invoke with a JSON Request. Every call validates its input
// before the engine sees it, and every failure comes back as an *Error whose
// Kind tells invalid input, unsupported mode, engine rejection and internal
// faults apart. Panics below the boundary are recovered by the bridge
// package and reported as KindInternal; the Context stays usable.
//
// Parallel mode needs the parallel build tag and a host with shared-memory
// threads:
//
//	go build -tags parallel ./...
//	GOOS=js GOARCH=wasm go build -tags parallel,browser ./cmd/zkwasm-js
package zkwasm
