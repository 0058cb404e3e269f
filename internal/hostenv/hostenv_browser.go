//go:build js && wasm && browser

package hostenv

import "syscall/js"

const Name = "browser"

// Concurrency reads navigator.hardwareConcurrency.
func Concurrency() int {
	nav := js.Global().Get("navigator")
	if nav.IsUndefined() {
		return 1
	}
	hc := nav.Get("hardwareConcurrency")
	if hc.Type() != js.TypeNumber || hc.Int() < 1 {
		return 1
	}
	return hc.Int()
}

// ThreadsSupported requires a cross-origin isolated page; without it the
// browser withholds SharedArrayBuffer. Goroutines still share one thread
// (see the package doc).
func ThreadsSupported() bool {
	g := js.Global()
	if !g.Get("crossOriginIsolated").Truthy() {
		return false
	}
	return g.Get("SharedArrayBuffer").Type() == js.TypeFunction
}
