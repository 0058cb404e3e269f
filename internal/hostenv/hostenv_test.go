//go:build !(js && wasm)

package hostenv

import "testing"

func TestNativeHost(t *testing.T) {
	if Name != "native" {
		t.Fatalf("Name = %q", Name)
	}
	if Concurrency() < 1 {
		t.Fatalf("Concurrency() = %d", Concurrency())
	}
	if !ThreadsSupported() {
		t.Fatal("native hosts support threads")
	}
}
