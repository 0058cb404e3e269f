// Package bridge converts panics raised below the host boundary into errors.
//
// A panic that unwinds into a wasm host aborts the instance, and one that
// escapes a worker goroutine kills the process. Every binding entry point and
// every dispatched shard therefore runs under Guard, which recovers, reports
// the panic through the installed logger and returns a *PanicError.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/logging"
)

// ErrPanic matches every *PanicError via errors.Is.
var ErrPanic = errors.New("bridge: recovered panic")

// PanicError carries a recovered panic. The stack is kept for diagnostics and
// is never part of Error().
type PanicError struct {
	Op    string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("panic: %v", e.Value)
	}
	return fmt.Sprintf("%s: panic: %v", e.Op, e.Value)
}

func (e *PanicError) Unwrap() []error {
	if err, ok := e.Value.(error); ok {
		return []error{ErrPanic, err}
	}
	return []error{ErrPanic}
}

var (
	installOnce sync.Once
	installed   atomic.Bool
	reporter    atomic.Pointer[loggerBox]
)

type loggerBox struct{ logger logging.Logger }

// Install registers the logger panics are reported to. Only the first call
// has an effect; the hook stays for the lifetime of the process.
func Install(logger logging.Logger) {
	installOnce.Do(func() {
		if logger == nil {
			logger = logging.Discard()
		}
		reporter.Store(&loggerBox{logger: logger})
		installed.Store(true)
	})
}

// Installed reports whether Install has run.
func Installed() bool {
	return installed.Load()
}

func report(ctx context.Context, pe *PanicError) {
	box := reporter.Load()
	if box == nil {
		return
	}
	box.logger.Error(ctx, "recovered panic", "op", pe.Op, "panic", fmt.Sprint(pe.Value), "stack", string(pe.Stack))
}

// Guard runs fn and converts a panic into a *PanicError.
func Guard(ctx context.Context, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := &PanicError{Op: op, Value: r, Stack: debug.Stack()}
			report(ctx, pe)
			err = pe
		}
	}()
	return fn()
}

// Call is Guard for functions returning a value. On panic the zero value is
// returned.
func Call[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	var out T
	err := Guard(ctx, op, func() error {
		var err error
		out, err = fn()
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
