package engine

import "errors"

// Validation errors. These are returned by the pure parsing helpers and are
// reported to hosts as invalid input.
var (
	ErrInvalidKey        = errors.New("engine: invalid key encoding")
	ErrInvalidAddress    = errors.New("engine: invalid address")
	ErrInvalidCiphertext = errors.New("engine: malformed ciphertext")
	ErrInvalidSignature  = errors.New("engine: malformed signature")
)

// Engine rejections.
var (
	// ErrNotOwner is returned when a ciphertext cannot be opened with the
	// supplied view key.
	ErrNotOwner = errors.New("engine: record is not owned by this view key")

	// ErrAssertion is returned when a program assertion fails during
	// evaluation.
	ErrAssertion = errors.New("engine: assertion failed")

	// ErrOverflow is returned when a u64 operation leaves the u64 range.
	ErrOverflow = errors.New("engine: u64 overflow")

	// ErrProofRejected is returned when a proof does not verify.
	ErrProofRejected = errors.New("engine: proof rejected")

	// ErrBadSignature is returned when a transition signature does not verify.
	ErrBadSignature = errors.New("engine: transition signature rejected")

	// ErrKeyMismatch is returned when imported proving or verifying keys do
	// not belong to the function's circuit.
	ErrKeyMismatch = errors.New("engine: keys do not match circuit")

	// ErrSynthesis wraps failures while compiling or setting up a circuit.
	ErrSynthesis = errors.New("engine: key synthesis failed")
)

// IsRejection reports whether err is an engine rejection rather than a
// validation failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrNotOwner, ErrAssertion, ErrOverflow, ErrProofRejected,
		ErrBadSignature, ErrKeyMismatch, ErrSynthesis,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValidation reports whether err is a validation failure from one of the
// parsing helpers.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidKey) || errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrInvalidCiphertext) || errors.Is(err, ErrInvalidSignature)
}
