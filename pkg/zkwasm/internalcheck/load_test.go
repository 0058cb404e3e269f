package internalcheck

import (
	"testing"

	"golang.org/x/tools/go/packages"
)

const modulePath = "github.com/zkwasm/zkwasm-go"

// checkedPackages are the packages that touch keys, ciphertexts or proofs.
var checkedPackages = []string{
	modulePath + "/pkg/zkwasm",
	modulePath + "/pkg/zkwasm/node/...",
	modulePath + "/internal/engine",
	modulePath + "/internal/keystore",
	modulePath + "/internal/program",
}

func load(t *testing.T, mode packages.LoadMode) []*packages.Package {
	t.Helper()
	pkgs, err := packages.Load(&packages.Config{Mode: mode}, checkedPackages...)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	if n := packages.PrintErrors(pkgs); n > 0 {
		t.Fatalf("%d errors loading packages", n)
	}
	if len(pkgs) < len(checkedPackages) {
		t.Fatalf("loaded %d packages, want at least %d", len(pkgs), len(checkedPackages))
	}
	return pkgs
}
