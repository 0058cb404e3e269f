//go:build js && wasm && !browser

package hostenv

import "syscall/js"

const Name = "node"

// Concurrency reads os.availableParallelism() when Node exposes it.
func Concurrency() int {
	proc := js.Global().Get("process")
	if proc.IsUndefined() {
		return 1
	}
	require := js.Global().Get("require")
	if require.Type() != js.TypeFunction {
		return 1
	}
	mod := require.Invoke("os")
	fn := mod.Get("availableParallelism")
	if fn.Type() != js.TypeFunction {
		return 1
	}
	if n := fn.Invoke().Int(); n > 0 {
		return n
	}
	return 1
}

// ThreadsSupported reports whether SharedArrayBuffer is available, which
// threaded wasm requires.
func ThreadsSupported() bool {
	return js.Global().Get("SharedArrayBuffer").Type() == js.TypeFunction
}
