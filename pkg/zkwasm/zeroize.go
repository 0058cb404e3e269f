package zkwasm

import "runtime"

// ZeroizeBytes overwrites buf with zeros and keeps the store alive past the
// compiler's dead store elimination (golang/go#33325). Copies made by the Go
// runtime or by crypto libraries are out of reach.
func ZeroizeBytes(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	runtime.KeepAlive(buf)
}
