package zkwasm

import "github.com/consensys/gnark"

var Version = "v0.0.0-in-progress"

// WrapperVersion returns the semantic version populated at build time via
// ldflags. In development it defaults to v0.0.0-in-progress.
func WrapperVersion() string {
	return Version
}

// EngineVersion reports the proof system version the reference engine is
// built on.
func EngineVersion() string {
	return "gnark " + gnark.Version.String()
}
