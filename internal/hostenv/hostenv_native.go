//go:build !(js && wasm)

package hostenv

import "runtime"

// Name identifies the host family.
const Name = "native"

// Concurrency returns the number of hardware threads available.
func Concurrency() int {
	return runtime.NumCPU()
}

// ThreadsSupported reports whether goroutines can run on parallel threads.
func ThreadsSupported() bool {
	return true
}
