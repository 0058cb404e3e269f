package zkwasm

import (
	"errors"
	"fmt"

	"github.com/zkwasm/zkwasm-go/internal/engine"
	"github.com/zkwasm/zkwasm-go/internal/keystore"
	"github.com/zkwasm/zkwasm-go/internal/program"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/bridge"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/dispatch"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/node"
)

// Kind classifies an error for hosts.
type Kind uint8

const (
	// KindInvalidInput: the request was malformed and never reached the engine.
	KindInvalidInput Kind = iota + 1
	// KindUnsupportedMode: Parallel was requested where it cannot run.
	KindUnsupportedMode
	// KindEngine: the engine rejected well-formed input.
	KindEngine
	// KindInternal: an unexpected fault, including recovered panics.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindUnsupportedMode:
		return "UnsupportedMode"
	case KindEngine:
		return "Engine"
	case KindInternal:
		return "Internal"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// MarshalText encodes the kind name for JSON results.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for _, c := range []Kind{KindInvalidInput, KindUnsupportedMode, KindEngine, KindInternal} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("zkwasm: unknown error kind %q", b)
}

// Sentinels matching each Kind via errors.Is.
var (
	ErrInvalidInput    = errors.New("zkwasm: invalid input")
	ErrUnsupportedMode = errors.New("zkwasm: unsupported execution mode")
	ErrEngine          = errors.New("zkwasm: engine error")
	ErrInternal        = errors.New("zkwasm: internal error")
)

var (
	// ErrClosed is returned by calls on closed bindings.
	ErrClosed = errors.New("zkwasm: bindings closed")

	// ErrContextActive is returned by Initialize while another Context is live.
	ErrContextActive = errors.New("zkwasm: an execution context is already active")

	// ErrRecordOwner is returned when a fee record does not belong to the payer.
	ErrRecordOwner = errors.New("zkwasm: fee record is not owned by the payer")

	// ErrInsufficientFee is returned when a fee record cannot cover the fee.
	ErrInsufficientFee = errors.New("zkwasm: fee record balance is below the fee")

	// ErrNoNode is returned when an operation needs a node but none is configured.
	ErrNoNode = errors.New("zkwasm: no node configured")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindUnsupportedMode:
		return ErrUnsupportedMode
	case KindEngine:
		return ErrEngine
	default:
		return ErrInternal
	}
}

// Error is the structured error returned by every binding entry point.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("zkwasm: %v", e.Err)
	}
	return fmt.Sprintf("zkwasm.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

func errorf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func invalid(op string, format string, args ...any) error {
	return errorf(KindInvalidInput, op, format, args...)
}

// KindOf returns the Kind of err, or KindInternal for errors that did not
// come from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// RemapError wraps lower-layer errors into *Error with the matching Kind.
// Errors that are already *Error pass through unchanged.
func RemapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: classify(err), Op: op, Err: err}
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, bridge.ErrPanic):
		return KindInternal
	case errors.Is(err, program.ErrSyntax),
		errors.Is(err, program.ErrUnknownFunction),
		errors.Is(err, program.ErrInvalidValue),
		engine.IsValidation(err),
		errors.Is(err, ErrClosed),
		errors.Is(err, ErrContextActive),
		errors.Is(err, ErrNoNode),
		errors.Is(err, dispatch.ErrPoolClosed):
		return KindInvalidInput
	case engine.IsRejection(err),
		errors.Is(err, keystore.ErrProgramConflict),
		errors.Is(err, ErrRecordOwner),
		errors.Is(err, ErrInsufficientFee),
		errors.Is(err, node.ErrNotFound):
		return KindEngine
	default:
		// Transport failures (node.ErrUnavailable) land here.
		return KindInternal
	}
}
