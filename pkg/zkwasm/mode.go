package zkwasm

import (
	"github.com/zkwasm/zkwasm-go/internal/hostenv"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/dispatch"
)

// ExecutionMode selects serial or thread-pool execution.
type ExecutionMode = dispatch.Mode

const (
	Serial   = dispatch.ModeSerial
	Parallel = dispatch.ModeParallel
)

// ParseMode parses "serial" or "parallel".
func ParseMode(s string) (ExecutionMode, error) {
	m, err := dispatch.ParseMode(s)
	if err != nil {
		return 0, &Error{Kind: KindInvalidInput, Op: "parse_mode", Err: err}
	}
	return m, nil
}

// DefaultMode is Parallel in builds with the parallel tag and Serial
// otherwise.
func DefaultMode() ExecutionMode {
	if parallelBuild {
		return Parallel
	}
	return Serial
}

// ParallelAvailable reports whether Parallel can be initialized in this build
// on this host.
func ParallelAvailable() bool {
	return parallelBuild && hostenv.ThreadsSupported()
}
