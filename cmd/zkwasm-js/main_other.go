//go:build !(js && wasm)

// Command zkwasm-js only does something when built for GOOS=js GOARCH=wasm.
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "zkwasm-js must be built with GOOS=js GOARCH=wasm")
	os.Exit(1)
}
