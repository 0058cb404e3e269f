package zkwasm

import (
	"sync/atomic"

	"github.com/zkwasm/zkwasm-go/internal/hostenv"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/dispatch"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/logging"
)

// live guards the process-wide Context slot.
var live atomic.Bool

// Context owns the execution mode and, in Parallel mode, the worker pool.
// At most one Context is live per process.
type Context struct {
	mode       ExecutionMode
	dispatcher dispatch.Dispatcher
	// owned is set when the context holds the process slot.
	owned  bool
	closed atomic.Bool
}

// Initialize creates the process Context from cfg.Mode and cfg.PoolSize.
// Requesting Parallel in a build without the parallel tag, or on a host
// without shared-memory threads, fails with KindUnsupportedMode. The worker
// pool is not started until the first dispatch.
func Initialize(cfg Config) (*Context, error) {
	return initialize(cfg.Mode, cfg.PoolSize, logging.Discard())
}

func initialize(mode ExecutionMode, poolSize int, logger logging.Logger) (*Context, error) {
	const op = "initialize"
	switch mode {
	case Serial:
	case Parallel:
		if !parallelBuild {
			return nil, errorf(KindUnsupportedMode, op, "%w: built without the parallel feature", ErrUnsupportedMode)
		}
		if !hostenv.ThreadsSupported() {
			return nil, errorf(KindUnsupportedMode, op, "%w: %s host lacks shared-memory threads", ErrUnsupportedMode, hostenv.Name)
		}
	default:
		return nil, invalid(op, "unknown mode %s", mode)
	}
	if poolSize < 0 {
		return nil, invalid(op, "negative pool size %d", poolSize)
	}
	if !live.CompareAndSwap(false, true) {
		return nil, &Error{Kind: KindInvalidInput, Op: op, Err: ErrContextActive}
	}

	var d dispatch.Dispatcher
	if mode == Parallel {
		if poolSize == 0 {
			poolSize = hostenv.Concurrency()
		}
		d = dispatch.NewParallel(poolSize, logger)
	} else {
		d = dispatch.NewSerial()
	}
	c := newContext(mode, d)
	c.owned = true
	return c, nil
}

func newContext(mode ExecutionMode, d dispatch.Dispatcher) *Context {
	return &Context{mode: mode, dispatcher: d}
}

// CurrentMode returns the mode fixed at Initialize.
func (c *Context) CurrentMode() ExecutionMode {
	return c.mode
}

// PoolSize is the number of shards that run at once: 1 in Serial mode.
func (c *Context) PoolSize() int {
	return c.dispatcher.Size()
}

// Dispatcher returns the dispatcher for the context's mode.
func (c *Context) Dispatcher() dispatch.Dispatcher {
	return c.dispatcher
}

// Close stops the worker pool and frees the process slot. Later calls
// return nil.
func (c *Context) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.owned {
		defer live.Store(false)
	}
	return c.dispatcher.Close()
}
